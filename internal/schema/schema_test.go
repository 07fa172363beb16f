package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelcore/pkg/domain"
)

const sample = `iri: http://example.org/tbox
classes:
  - iri: A
  - iri: B
    parents: [A]
  - iri: C
properties:
  - iri: partOf
  - iri: evidence
    annotation: true
disjoint:
  - [B, C]
`

func TestParseBuildsClosure(t *testing.T) {
	tbox, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, domain.IRI("http://example.org/tbox"), tbox.IRI())
	assert.Contains(t, tbox.SuperClasses("B"), domain.IRI("A"))
	assert.True(t, tbox.Disjoint("C", "B"))
	assert.True(t, tbox.IsAnnotationProperty("evidence"))
	assert.True(t, tbox.HasProperty("partOf"))
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("iri: x\nclases: []\n"))
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	tbox, err := Load(path)
	require.NoError(t, err)
	assert.True(t, tbox.HasClass("C"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEmptyDefaultsIRI(t *testing.T) {
	assert.Equal(t, DefaultIRI, Empty("").IRI())
	assert.Equal(t, domain.IRI("x"), Empty("x").IRI())
}
