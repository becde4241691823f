// Package rdfio decodes RDF documents into the triple collection consumed by
// the ingestion pipeline. The syntax handling itself is delegated entirely to
// github.com/knakk/rdf; this package only picks the serialization and maps
// decoder terms onto our triple type.
package rdfio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knakk/rdf"
	"github.com/ontomart/ontomart/api/schemas"
	"go.uber.org/zap"
)

// formats maps configuration names to decoder formats.
var formats = map[string]rdf.Format{
	"ntriples": rdf.NTriples,
	"turtle":   rdf.Turtle,
	"rdfxml":   rdf.RDFXML,
}

// ParseFormat resolves a configuration name to a decoder format.
func ParseFormat(name string) (rdf.Format, error) {
	f, ok := formats[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return rdf.Turtle, fmt.Errorf("unknown RDF format %q (supported: ntriples, rdfxml, turtle)", name)
	}
	return f, nil
}

func formatName(f rdf.Format) string {
	switch f {
	case rdf.NTriples:
		return "ntriples"
	case rdf.RDFXML:
		return "rdfxml"
	default:
		return "turtle"
	}
}

// Parser decodes RDF documents into triple collections.
type Parser struct {
	defaultFormat rdf.Format
	log           *zap.Logger
}

// NewParser creates a Parser. defaultFormat names the serialization assumed
// for files whose extension is unrecognized.
func NewParser(defaultFormat string, logger *zap.Logger) (*Parser, error) {
	f, err := ParseFormat(defaultFormat)
	if err != nil {
		return nil, err
	}
	return &Parser{
		defaultFormat: f,
		log:           logger.Named("rdfio"),
	}, nil
}

// ParseFile decodes the document at path, picking the serialization from the
// file extension.
func (p *Parser) ParseFile(path string) ([]schemas.Triple, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	return p.Parse(file, p.FormatForPath(path))
}

// FormatForPath picks the serialization by file extension, falling back to
// the configured default when the extension is unknown.
func (p *Parser) FormatForPath(path string) rdf.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nt":
		return rdf.NTriples
	case ".ttl", ".n3":
		return rdf.Turtle
	case ".rdf", ".owl", ".xml":
		return rdf.RDFXML
	default:
		return p.defaultFormat
	}
}

// Parse decodes every triple from r in the given serialization. The whole
// collection is materialized; order follows document order.
func (p *Parser) Parse(r io.Reader, format rdf.Format) ([]schemas.Triple, error) {
	dec := rdf.NewTripleDecoder(r, format)

	var triples []schemas.Triple
	for {
		tr, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s document: %w", formatName(format), err)
		}
		triples = append(triples, convert(tr))
	}

	p.log.Debug("Decoded RDF document",
		zap.String("format", formatName(format)),
		zap.Int("triples", len(triples)),
	)
	return triples, nil
}

// convert maps a decoder triple onto our triple type. Subjects are keyed by
// their term string whether IRI or blank label; only the object's kind is
// recorded because classification depends on it alone.
func convert(t rdf.Triple) schemas.Triple {
	out := schemas.Triple{
		Subject:   t.Subj.String(),
		Predicate: t.Pred.String(),
		Object:    t.Obj.String(),
	}
	switch t.Obj.Type() {
	case rdf.TermIRI:
		out.ObjectKind = schemas.TermIRI
	case rdf.TermLiteral:
		out.ObjectKind = schemas.TermLiteral
	default:
		out.ObjectKind = schemas.TermBlank
	}
	return out
}
