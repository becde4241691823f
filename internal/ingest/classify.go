package ingest

import "github.com/ontomart/ontomart/api/schemas"

// Classified is the outcome of partitioning a triple collection into
// relational and literal batches keyed by predicate. Pairs within a batch
// keep document order and are not deduplicated; predicates are tracked in
// first-seen order so batch dispatch is deterministic. A predicate with
// mixed object kinds appears in both partitions.
type Classified struct {
	relations     map[string][]schemas.RelationPair
	literals      map[string][]schemas.LiteralPair
	relationOrder []string
	literalOrder  []string
}

// Classify sorts each triple into exactly one partition based on its object
// term: IRI objects become relation pairs, everything else (literals and
// blank nodes) becomes literal pairs.
func Classify(triples []schemas.Triple) *Classified {
	c := &Classified{
		relations: make(map[string][]schemas.RelationPair),
		literals:  make(map[string][]schemas.LiteralPair),
	}

	for _, t := range triples {
		if t.ObjectIsResource() {
			if _, seen := c.relations[t.Predicate]; !seen {
				c.relationOrder = append(c.relationOrder, t.Predicate)
			}
			c.relations[t.Predicate] = append(c.relations[t.Predicate], schemas.RelationPair{
				Subject: t.Subject,
				Object:  t.Object,
			})
			continue
		}

		if _, seen := c.literals[t.Predicate]; !seen {
			c.literalOrder = append(c.literalOrder, t.Predicate)
		}
		c.literals[t.Predicate] = append(c.literals[t.Predicate], schemas.LiteralPair{
			Subject: t.Subject,
			Value:   t.Object,
		})
	}

	return c
}

// RelationPredicates returns the relational predicates in first-seen order.
func (c *Classified) RelationPredicates() []string { return c.relationOrder }

// LiteralPredicates returns the literal predicates in first-seen order.
func (c *Classified) LiteralPredicates() []string { return c.literalOrder }

// Relations returns the relation pairs for a predicate in document order.
func (c *Classified) Relations(predicate string) []schemas.RelationPair {
	return c.relations[predicate]
}

// Literals returns the literal pairs for a predicate in document order.
func (c *Classified) Literals(predicate string) []schemas.LiteralPair {
	return c.literals[predicate]
}

// Size reports the number of triples in each partition.
func (c *Classified) Size() (relational, literal int) {
	for _, pairs := range c.relations {
		relational += len(pairs)
	}
	for _, pairs := range c.literals {
		literal += len(pairs)
	}
	return relational, literal
}

// Empty reports whether no triples were classified.
func (c *Classified) Empty() bool {
	return len(c.relationOrder) == 0 && len(c.literalOrder) == 0
}
