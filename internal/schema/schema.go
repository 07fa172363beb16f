// Package schema loads the shared TBox from YAML documents.
package schema

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"modelcore/pkg/domain"
)

// DefaultIRI names the TBox used when no schema file is configured.
const DefaultIRI domain.IRI = "http://purl.obolibrary.org/obo/go/extensions/go-lego.owl"

// Parse decodes a YAML TBox document. Unknown fields are rejected.
//
//	iri: http://example.org/tbox
//	classes:
//	  - iri: C
//	    parents: [B]
//	properties:
//	  - iri: partOf
//	disjoint:
//	  - [C, D]
func Parse(data []byte) (*domain.TBox, error) {
	var spec domain.TBoxSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, &domain.MalformedInputError{Source: "tbox", Reason: "decode yaml", Err: err}
	}
	return domain.NewTBox(spec)
}

// Load reads and parses the TBox at path.
func Load(path string) (*domain.TBox, error) {
	// #nosec G304 -- schema path comes from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tbox %s: %w", path, err)
	}
	tbox, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load tbox %s: %w", path, err)
	}
	return tbox, nil
}

// Empty returns a TBox that declares nothing but its IRI.
func Empty(iri domain.IRI) *domain.TBox {
	if iri == "" {
		iri = DefaultIRI
	}
	tbox, err := domain.NewTBox(domain.TBoxSpec{IRI: iri})
	if err != nil {
		panic(fmt.Errorf("empty tbox: %w", err))
	}
	return tbox
}
