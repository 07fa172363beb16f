package core

import (
	"fmt"
	"sync/atomic"
	"time"

	"modelcore/pkg/domain"
)

// DefaultIDPrefix is prepended to generated model IDs.
const DefaultIDPrefix = "http://model.geneontology.org/"

// IDGenerator issues model IDs from a counter salted with the generator's
// start time, so IDs stay unique across restarts.
type IDGenerator struct {
	prefix  string
	salt    string
	counter atomic.Uint64
}

// NewIDGenerator returns a generator salted with start.
func NewIDGenerator(prefix string, start time.Time) *IDGenerator {
	return &IDGenerator{prefix: prefix, salt: fmt.Sprintf("%x", start.UnixMilli())}
}

// Next returns a fresh ID. It is safe for concurrent use.
func (g *IDGenerator) Next() domain.ModelID {
	n := g.counter.Add(1)
	return domain.ModelID(fmt.Sprintf("%s%s%08x", g.prefix, g.salt, n))
}
