package codec

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"modelcore/pkg/domain"
)

// YAML encodes a `{facts: [...]}` document.
type YAML struct{}

var _ domain.Codec = YAML{}

type yamlDocument struct {
	Facts []domain.Fact `yaml:"facts"`
}

// Format implements domain.Codec.
func (YAML) Format() domain.Format { return FormatYAML }

// Decode parses a single YAML document. Unknown keys are rejected.
func (YAML) Decode(data []byte) ([]domain.Fact, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc yamlDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, &domain.MalformedInputError{Source: "yaml", Reason: "invalid document", Err: err}
	}
	return doc.Facts, nil
}

// Encode writes a YAML document with facts in order.
func (YAML) Encode(facts []domain.Fact) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(yamlDocument{Facts: facts}); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}
