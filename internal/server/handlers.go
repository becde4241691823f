package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ontomart/ontomart/api/schemas"
	"github.com/ontomart/ontomart/internal/catalog"
	"github.com/ontomart/ontomart/internal/ingest"
)

// Request bodies above this size are cut off; ontology documents themselves
// arrive by reference, so the API payloads stay small.
const maxRequestBody = 1 << 20

// writeJSON writes the response envelope with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := schemas.Response{Success: status < http.StatusBadRequest, Message: message, Data: data}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("Failed to encode response", zap.Error(err))
	}
}

// writeJSONError writes a failure envelope without a data payload.
func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, message, nil)
}

// decodeBody unmarshals a size-capped request body into v.
func (s *Server) decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		s.log.Warn("Health check failed", zap.Error(err))
		s.writeJSONError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	s.writeJSON(w, http.StatusOK, "ok", nil)
}

func (s *Server) handleSearchOntologies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := catalog.MaxPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	result, err := s.catalog.Search(r.Context(), q, limit, offset)
	if err != nil {
		s.log.Error("Search failed", zap.Error(err))
		s.writeJSONError(w, http.StatusInternalServerError, "search failed")
		return
	}
	s.writeJSON(w, http.StatusOK, "", result)
}

func (s *Server) handleCreateOntologies(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var inputs []schemas.OntologyInput
	if err := json.Unmarshal(body, &inputs); err != nil {
		// A single object is accepted as a batch of one.
		var single schemas.OntologyInput
		if err := json.Unmarshal(body, &single); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		inputs = []schemas.OntologyInput{single}
	}

	if len(inputs) == 0 {
		s.writeJSONError(w, http.StatusBadRequest, "empty batch")
		return
	}
	for _, in := range inputs {
		if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.SourceURL) == "" {
			s.writeJSONError(w, http.StatusBadRequest, "name and source_url are required")
			return
		}
	}

	created, skipped, err := s.catalog.CreateBatch(r.Context(), s.userEmail(r), inputs)
	if err != nil {
		s.log.Error("Create failed", zap.Error(err))
		s.writeJSONError(w, http.StatusInternalServerError, "failed to create ontologies")
		return
	}

	s.writeJSON(w, http.StatusCreated, fmt.Sprintf("created %d, skipped %d", len(created), skipped), created)
}

func (s *Server) handleGetOntology(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid ontology id")
		return
	}

	o, err := s.catalog.Get(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		s.writeJSONError(w, http.StatusNotFound, "ontology not found")
		return
	}
	if err != nil {
		s.log.Error("Get failed", zap.Error(err))
		s.writeJSONError(w, http.StatusInternalServerError, "failed to fetch ontology")
		return
	}
	s.writeJSON(w, http.StatusOK, "", o)
}

func (s *Server) handleUpdateOntology(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid ontology id")
		return
	}

	var upd schemas.OntologyUpdate
	if err := s.decodeBody(r, &upd); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	existing, err := s.catalog.Get(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		s.writeJSONError(w, http.StatusNotFound, "ontology not found")
		return
	}
	if err != nil {
		s.log.Error("Get failed", zap.Error(err))
		s.writeJSONError(w, http.StatusInternalServerError, "failed to fetch ontology")
		return
	}
	if existing.OwnerEmail != "" && existing.OwnerEmail != s.userEmail(r) {
		s.writeJSONError(w, http.StatusForbidden, "only the owner can modify this ontology")
		return
	}

	updated, err := s.catalog.Update(r.Context(), id, upd)
	if errors.Is(err, catalog.ErrNotFound) {
		s.writeJSONError(w, http.StatusNotFound, "ontology not found")
		return
	}
	if err != nil {
		s.log.Error("Update failed", zap.Error(err))
		s.writeJSONError(w, http.StatusInternalServerError, "failed to update ontology")
		return
	}
	s.writeJSON(w, http.StatusOK, "", updated)
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleDeleteOntologies(w http.ResponseWriter, r *http.Request) {
	owner := s.userEmail(r)
	if owner == "" {
		s.writeJSONError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	var req deleteRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		s.writeJSONError(w, http.StatusBadRequest, "ids are required")
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid ontology id %q", raw))
			return
		}
		ids = append(ids, id)
	}

	deleted, err := s.catalog.Delete(r.Context(), owner, ids)
	if err != nil {
		s.log.Error("Delete failed", zap.Error(err))
		s.writeJSONError(w, http.StatusInternalServerError, "failed to delete ontologies")
		return
	}
	s.writeJSON(w, http.StatusOK, "", map[string]int64{"deleted": deleted})
}

func (s *Server) handleLikeOntology(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid ontology id")
		return
	}

	likes, err := s.catalog.Like(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		s.writeJSONError(w, http.StatusNotFound, "ontology not found")
		return
	}
	if err != nil {
		s.log.Error("Like failed", zap.Error(err))
		s.writeJSONError(w, http.StatusInternalServerError, "failed to record like")
		return
	}
	s.writeJSON(w, http.StatusOK, "", map[string]int64{"likes": likes})
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.catalog.ListTags(r.Context())
	if err != nil {
		s.log.Error("List tags failed", zap.Error(err))
		s.writeJSONError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	s.writeJSON(w, http.StatusOK, "", tags)
}

type addTagsRequest struct {
	Tags []string `json:"tags"`
}

func (s *Server) handleAddTags(w http.ResponseWriter, r *http.Request) {
	var req addTagsRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Tags) == 0 {
		s.writeJSONError(w, http.StatusBadRequest, "tags are required")
		return
	}

	added, err := s.catalog.AddTags(r.Context(), req.Tags)
	if err != nil {
		s.log.Error("Add tags failed", zap.Error(err))
		s.writeJSONError(w, http.StatusInternalServerError, "failed to add tags")
		return
	}
	s.writeJSON(w, http.StatusCreated, "", map[string]int64{"added": added})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req schemas.IngestRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.SourceURL) == "" {
		s.writeJSONError(w, http.StatusBadRequest, "source_url is required")
		return
	}
	if req.OntologyID != "" {
		if _, err := uuid.Parse(req.OntologyID); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "invalid ontology_id")
			return
		}
	}

	stats, err := s.ingestor.Ingest(r.Context(), req.SourceURL, req.OntologyID)
	if err != nil {
		var igErr *ingest.Error
		if errors.As(err, &igErr) {
			// Committed batches are durable, so the partial counters go back
			// to the caller alongside the failure.
			s.log.Error("Ingestion failed after partial progress", zap.Error(err))
			s.writeJSON(w, http.StatusInternalServerError, igErr.Error(), igErr.Partial)
			return
		}
		s.log.Error("Ingestion failed", zap.Error(err))
		s.writeJSONError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}

	s.writeJSON(w, http.StatusOK, "ingestion complete", stats)
}
