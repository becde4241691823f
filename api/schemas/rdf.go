package schemas

// TermKind identifies the kind of RDF term found in the object position of a
// triple. Subjects and predicates are always identifiers, so only the object
// needs a kind.
type TermKind uint8

const (
	TermIRI     TermKind = iota // A resource identifier (IRI).
	TermLiteral                 // A scalar value in its lexical string form.
	TermBlank                   // A blank node label.
)

// Triple is a single subject-predicate-object statement as produced by the
// RDF decoder. Triples are immutable facts; the classifier consumes them
// read-only.
type Triple struct {
	Subject    string   `json:"subject"`
	Predicate  string   `json:"predicate"`
	Object     string   `json:"object"`
	ObjectKind TermKind `json:"object_kind"`
}

// ObjectIsResource reports whether the object names another resource rather
// than carrying a value. Blank-node objects are treated as values, so their
// label lands in a property instead of an edge.
func (t Triple) ObjectIsResource() bool {
	return t.ObjectKind == TermIRI
}

// RelationPair is one (subject, object) entry of a relational batch. The
// predicate is carried once per batch, not per pair.
type RelationPair struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
}

// LiteralPair is one (subject, value) entry of a literal batch. The sanitized
// property key is carried once per batch.
type LiteralPair struct {
	Subject string `json:"subject"`
	Value   string `json:"value"`
}
