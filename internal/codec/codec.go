// Package codec converts between fact graphs and their byte encodings.
package codec

import (
	"fmt"
	"strings"

	"modelcore/pkg/domain"
)

// Supported formats.
const (
	FormatJSONL domain.Format = "jsonl"
	FormatYAML  domain.Format = "yaml"
)

var codecs = map[domain.Format]domain.Codec{
	FormatJSONL: JSONL{},
	FormatYAML:  YAML{},
}

// For returns the codec registered for format.
func For(format domain.Format) (domain.Codec, error) {
	c, ok := codecs[domain.Format(strings.ToLower(string(format)))]
	if !ok {
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return c, nil
}

// ForPath picks a codec from a file extension. It falls back to JSONL.
func ForPath(path string) domain.Codec {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return YAML{}
	}
	return JSONL{}
}

// BytesToFacts decodes data in the given format.
func BytesToFacts(data []byte, format domain.Format) ([]domain.Fact, error) {
	c, err := For(format)
	if err != nil {
		return nil, err
	}
	return c.Decode(data)
}

// FactsToBytes encodes facts in the given format, preserving their order.
func FactsToBytes(facts []domain.Fact, format domain.Format) ([]byte, error) {
	c, err := For(format)
	if err != nil {
		return nil, err
	}
	return c.Encode(facts)
}

// Formats lists the registered format names.
func Formats() []domain.Format {
	return []domain.Format{FormatJSONL, FormatYAML}
}
