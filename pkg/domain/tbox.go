package domain

import (
	"fmt"
	"sort"
)

// ClassDef declares a named class and its direct parents.
type ClassDef struct {
	IRI     IRI    `json:"iri" yaml:"iri"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
	Parents []IRI  `json:"parents,omitempty" yaml:"parents,omitempty"`
}

// PropertyDef declares an object or annotation property.
type PropertyDef struct {
	IRI        IRI    `json:"iri" yaml:"iri"`
	Label      string `json:"label,omitempty" yaml:"label,omitempty"`
	Annotation bool   `json:"annotation,omitempty" yaml:"annotation,omitempty"`
}

// TBoxSpec is the construction input of a TBox.
type TBoxSpec struct {
	IRI        IRI           `json:"iri" yaml:"iri"`
	Classes    []ClassDef    `json:"classes" yaml:"classes"`
	Properties []PropertyDef `json:"properties" yaml:"properties"`
	Disjoint   [][2]IRI      `json:"disjoint,omitempty" yaml:"disjoint,omitempty"`
}

// TBox is the shared, read-only schema graph. It is immutable after
// construction and safe for concurrent use by any number of models.
type TBox struct {
	iri        IRI
	classes    map[IRI]ClassDef
	properties map[IRI]PropertyDef
	disjoint   map[[2]IRI]struct{}
	supers     map[IRI][]IRI
}

// NewTBox validates spec and precomputes the superclass closure.
func NewTBox(spec TBoxSpec) (*TBox, error) {
	if spec.IRI == "" {
		return nil, &MalformedInputError{Source: "tbox", Reason: "iri required"}
	}
	t := &TBox{
		iri:        spec.IRI,
		classes:    make(map[IRI]ClassDef, len(spec.Classes)),
		properties: make(map[IRI]PropertyDef, len(spec.Properties)),
		disjoint:   make(map[[2]IRI]struct{}, len(spec.Disjoint)),
		supers:     make(map[IRI][]IRI, len(spec.Classes)),
	}
	for _, c := range spec.Classes {
		if c.IRI == "" {
			return nil, &MalformedInputError{Source: "tbox", Reason: "class iri required"}
		}
		if _, dup := t.classes[c.IRI]; dup {
			return nil, &MalformedInputError{Source: string(c.IRI), Reason: "duplicate class"}
		}
		c.Parents = append([]IRI(nil), c.Parents...)
		t.classes[c.IRI] = c
	}
	for _, c := range spec.Classes {
		for _, parent := range c.Parents {
			if _, ok := t.classes[parent]; !ok {
				return nil, &MalformedInputError{Source: string(c.IRI), Reason: fmt.Sprintf("unknown parent %s", parent)}
			}
		}
	}
	for _, p := range spec.Properties {
		if p.IRI == "" {
			return nil, &MalformedInputError{Source: "tbox", Reason: "property iri required"}
		}
		t.properties[p.IRI] = p
	}
	for _, pair := range spec.Disjoint {
		for _, c := range pair {
			if _, ok := t.classes[c]; !ok {
				return nil, &MalformedInputError{Source: string(c), Reason: "disjointness over unknown class"}
			}
		}
		t.disjoint[orderedPair(pair[0], pair[1])] = struct{}{}
	}
	for iri := range t.classes {
		t.supers[iri] = t.closure(iri)
	}
	return t, nil
}

func (t *TBox) closure(start IRI) []IRI {
	seen := map[IRI]struct{}{start: {}}
	stack := append([]IRI(nil), t.classes[start].Parents...)
	var out []IRI
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[next]; ok {
			continue
		}
		seen[next] = struct{}{}
		out = append(out, next)
		stack = append(stack, t.classes[next].Parents...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func orderedPair(a, b IRI) [2]IRI {
	if b < a {
		a, b = b, a
	}
	return [2]IRI{a, b}
}

// IRI returns the ontology IRI models import to reference this schema.
func (t *TBox) IRI() IRI { return t.iri }

// HasClass reports whether iri is a declared class.
func (t *TBox) HasClass(iri IRI) bool {
	_, ok := t.classes[iri]
	return ok
}

// HasProperty reports whether iri is a declared property.
func (t *TBox) HasProperty(iri IRI) bool {
	_, ok := t.properties[iri]
	return ok
}

// IsAnnotationProperty reports whether iri is a declared annotation property.
func (t *TBox) IsAnnotationProperty(iri IRI) bool {
	p, ok := t.properties[iri]
	return ok && p.Annotation
}

// SuperClasses returns the transitive, sorted superclasses of class, excluding itself.
func (t *TBox) SuperClasses(class IRI) []IRI {
	return append([]IRI(nil), t.supers[class]...)
}

// Disjoint reports whether a and b are declared disjoint.
func (t *TBox) Disjoint(a, b IRI) bool {
	_, ok := t.disjoint[orderedPair(a, b)]
	return ok
}

// DisjointPairs returns the declared disjoint pairs in sorted order.
func (t *TBox) DisjointPairs() [][2]IRI {
	out := make([][2]IRI, 0, len(t.disjoint))
	for pair := range t.disjoint {
		out = append(out, pair)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// Classes returns the declared class IRIs, sorted.
func (t *TBox) Classes() []IRI {
	out := make([]IRI, 0, len(t.classes))
	for iri := range t.classes {
		out = append(out, iri)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
