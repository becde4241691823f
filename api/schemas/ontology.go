package schemas

import (
	"time"

	"github.com/google/uuid"
)

// Ontology is a catalog record describing one ingestible ontology document
// and the statistics of its latest load into the graph.
type Ontology struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	SourceURL         string    `json:"source_url"`
	ImageURL          string    `json:"image_url,omitempty"`
	OwnerEmail        string    `json:"owner_email,omitempty"`
	IsPublic          bool      `json:"is_public"`
	Likes             int64     `json:"likes"`
	NodeCount         int64     `json:"node_count"`
	RelationshipCount int64     `json:"relationship_count"`
	Tags              []string  `json:"tags,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// OntologyInput is the caller-supplied portion of a new catalog record.
type OntologyInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	SourceURL   string   `json:"source_url"`
	ImageURL    string   `json:"image_url,omitempty"`
	IsPublic    bool     `json:"is_public"`
	Tags        []string `json:"tags,omitempty"`
}

// OntologyUpdate carries the mutable fields of a catalog record. A nil
// pointer leaves the field untouched; a non-nil Tags slice replaces the tag
// set (an empty non-nil slice clears it).
type OntologyUpdate struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	ImageURL    *string  `json:"image_url,omitempty"`
	IsPublic    *bool    `json:"is_public,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// SearchResult is one page of catalog search output plus the unpaginated
// total, so clients can render pagination without a second round-trip.
type SearchResult struct {
	Items  []Ontology `json:"items"`
	Total  int64      `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}
