// Package domain defines the graph facts, edits, change events, schema and
// collaborator contracts shared by the model lifecycle manager and its
// persistence backends.
package domain

import (
	"fmt"
	"strings"
)

// ModelID is the stable, globally unique identifier of one model (ABox partition).
type ModelID string

// String implements fmt.Stringer.
func (id ModelID) String() string { return string(id) }

// IRI identifies an individual, class, property or ontology.
type IRI string

// FactKind enumerates the closed set of atomic statements stored in an ABox.
type FactKind string

// Supported fact kinds.
const (
	// FactOntology declares the graph as an ontology with Subject as its self-identifier.
	FactOntology FactKind = "ontology"
	// FactImport declares that the Subject ontology imports Object.
	FactImport FactKind = "import"
	// FactIndividual declares Subject as a named individual.
	FactIndividual FactKind = "individual"
	// FactType asserts that individual Subject has the class expression Object.
	FactType FactKind = "type"
	// FactRelation asserts Subject -Predicate-> Object between two individuals.
	FactRelation FactKind = "relation"
	// FactAnnotation attaches Literal under Predicate to Subject, or to the relation named by Target.
	FactAnnotation FactKind = "annotation"
)

// Well-known annotation vocabulary.
const (
	// ModelStateProperty carries the lifecycle state of a stored model.
	ModelStateProperty IRI = "http://geneontology.org/lego/modelstate"
	// ModelStateDelete marks a stored model as deleted; bulk import may skip it.
	ModelStateDelete = "delete"
	// TitleProperty is the annotation property used for model titles.
	TitleProperty IRI = "http://purl.org/dc/elements/1.1/title"
	// ContributorProperty records the acting user on annotations added by the lifecycle manager.
	ContributorProperty IRI = "http://purl.org/dc/elements/1.1/contributor"
)

// Fact is one atomic statement of an ABox. Facts are compared by Key.
type Fact struct {
	Kind      FactKind `json:"kind" yaml:"kind"`
	Subject   IRI      `json:"subject,omitempty" yaml:"subject,omitempty"`
	Predicate IRI      `json:"predicate,omitempty" yaml:"predicate,omitempty"`
	Object    IRI      `json:"object,omitempty" yaml:"object,omitempty"`
	Literal   string   `json:"literal,omitempty" yaml:"literal,omitempty"`
	// Target holds the Key of the relation fact an annotation is attached to.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
}

const keySep = "\x1f"

// Key returns the canonical identity of the fact.
func (f Fact) Key() string {
	return strings.Join([]string{
		string(f.Kind),
		string(f.Subject),
		string(f.Predicate),
		string(f.Object),
		f.Literal,
		f.Target,
	}, keySep)
}

// String renders the fact for logs and error messages.
func (f Fact) String() string {
	switch f.Kind {
	case FactOntology:
		return fmt.Sprintf("ontology(%s)", f.Subject)
	case FactImport:
		return fmt.Sprintf("import(%s -> %s)", f.Subject, f.Object)
	case FactIndividual:
		return fmt.Sprintf("individual(%s)", f.Subject)
	case FactType:
		return fmt.Sprintf("type(%s %s)", f.Subject, f.Object)
	case FactRelation:
		return fmt.Sprintf("relation(%s %s %s)", f.Subject, f.Predicate, f.Object)
	case FactAnnotation:
		if f.Target != "" {
			return fmt.Sprintf("annotation(relation %q %s %q)", f.Target, f.Predicate, f.Literal)
		}
		return fmt.Sprintf("annotation(%s %s %q)", f.Subject, f.Predicate, f.Literal)
	default:
		return fmt.Sprintf("fact(%s)", f.Kind)
	}
}

// Validate reports structural problems that make the fact unusable.
func (f Fact) Validate() error {
	missing := func(field string) error {
		return &MalformedInputError{Source: f.String(), Reason: field + " required"}
	}
	switch f.Kind {
	case FactOntology, FactIndividual:
		if f.Subject == "" {
			return missing("subject")
		}
	case FactImport:
		if f.Subject == "" {
			return missing("subject")
		}
		if f.Object == "" {
			return missing("object")
		}
	case FactType:
		if f.Subject == "" {
			return missing("subject")
		}
		if f.Object == "" {
			return missing("class expression")
		}
		if _, err := ParseExpression(string(f.Object)); err != nil {
			return &MalformedInputError{Source: f.String(), Reason: "invalid class expression", Err: err}
		}
	case FactRelation:
		if f.Subject == "" || f.Object == "" {
			return missing("subject and object")
		}
		if f.Predicate == "" {
			return missing("predicate")
		}
	case FactAnnotation:
		if f.Predicate == "" {
			return missing("predicate")
		}
		if (f.Subject == "") == (f.Target == "") {
			return &MalformedInputError{Source: f.String(), Reason: "annotation needs exactly one of subject or target"}
		}
	default:
		return &MalformedInputError{Source: string(f.Kind), Reason: "unknown fact kind"}
	}
	return nil
}

// References reports whether the fact mentions iri as subject or value.
func (f Fact) References(iri IRI) bool {
	if f.Subject == iri {
		return true
	}
	switch f.Kind {
	case FactRelation:
		return f.Object == iri
	case FactAnnotation:
		return f.Literal == string(iri)
	}
	return false
}

// OntologyFact declares id as the self-identifier of a model graph.
func OntologyFact(id ModelID) Fact {
	return Fact{Kind: FactOntology, Subject: IRI(id)}
}

// ImportFact declares that model imports ontology.
func ImportFact(model ModelID, ontology IRI) Fact {
	return Fact{Kind: FactImport, Subject: IRI(model), Object: ontology}
}

// IndividualFact declares a named individual.
func IndividualFact(individual IRI) Fact {
	return Fact{Kind: FactIndividual, Subject: individual}
}

// TypeFact asserts that individual has the class expression expr.
func TypeFact(individual IRI, expr string) Fact {
	return Fact{Kind: FactType, Subject: individual, Object: IRI(expr)}
}

// RelationFact asserts subject -property-> object.
func RelationFact(subject, property, object IRI) Fact {
	return Fact{Kind: FactRelation, Subject: subject, Predicate: property, Object: object}
}

// AnnotationFact annotates subject (a model or individual IRI).
func AnnotationFact(subject, property IRI, value string) Fact {
	return Fact{Kind: FactAnnotation, Subject: subject, Predicate: property, Literal: value}
}

// RelationAnnotationFact annotates the relation fact rel.
func RelationAnnotationFact(rel Fact, property IRI, value string) Fact {
	return Fact{Kind: FactAnnotation, Target: rel.Key(), Predicate: property, Literal: value}
}
