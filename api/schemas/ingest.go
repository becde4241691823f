package schemas

// IngestStats are the aggregate counters produced by one ingestion run.
//
// Nodes sums the touched-node counts of every predicate batch without global
// deduplication: a resource referenced by three different predicates is
// counted three times, and the subject and object sides of a relational batch
// are counted separately. The value is therefore an activity metric, not a
// distinct-node count. Relationships likewise counts processed pairs, which
// can exceed the number of distinct edge rows when the input repeats a
// statement. Downstream consumers depend on these sums as reported, so they
// are kept bit-for-bit rather than corrected.
type IngestStats struct {
	Nodes         int64 `json:"nodes"`
	Relationships int64 `json:"relationships"`
}

// Add folds another batch's counters into s.
func (s *IngestStats) Add(other IngestStats) {
	s.Nodes += other.Nodes
	s.Relationships += other.Relationships
}

// IngestRequest is the API payload that triggers an ingestion run.
// OntologyID is optional; when present the matching catalog record is
// annotated with the resulting counts.
type IngestRequest struct {
	SourceURL  string `json:"source_url"`
	OntologyID string `json:"ontology_id,omitempty"`
}
