package codec

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"modelcore/pkg/domain"
)

// JSONL encodes one JSON fact per line.
type JSONL struct{}

var _ domain.Codec = JSONL{}

// Format implements domain.Codec.
func (JSONL) Format() domain.Format { return FormatJSONL }

// Decode parses every non-blank line as a fact.
func (JSONL) Decode(data []byte) ([]domain.Fact, error) {
	var facts []domain.Fact
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var f domain.Fact
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, &domain.MalformedInputError{Source: fmt.Sprintf("line %d", line), Reason: "invalid json fact", Err: err}
		}
		facts = append(facts, f)
	}
	if err := sc.Err(); err != nil {
		return nil, &domain.MalformedInputError{Source: "jsonl", Reason: "read", Err: err}
	}
	return facts, nil
}

// Encode writes facts in order, one per line.
func (JSONL) Encode(facts []domain.Fact) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, f := range facts {
		if err := enc.Encode(f); err != nil {
			return nil, fmt.Errorf("encode %s: %w", f, err)
		}
	}
	return buf.Bytes(), nil
}
