package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"modelcore/internal/codec"
	"modelcore/pkg/domain"
)

// OpKind names one operation of a batched request.
type OpKind string

const (
	OpAddFact          OpKind = "add_fact"
	OpRemoveFact       OpKind = "remove_fact"
	OpAddType          OpKind = "add_type"
	OpRemoveType       OpKind = "remove_type"
	OpAddAnnotation    OpKind = "add_annotation"
	OpRemoveAnnotation OpKind = "remove_annotation"
	OpAddIndividual    OpKind = "add_individual"
	OpDeleteIndividual OpKind = "delete_individual"
	OpAddRelation      OpKind = "add_relation"
	OpRemoveRelation   OpKind = "remove_relation"
	OpUndo             OpKind = "undo"
	OpRedo             OpKind = "redo"
	OpSave             OpKind = "save"
	OpExport           OpKind = "export"
	OpCreateBlankModel OpKind = "create_blank_model"
)

// Op is one operation. Only the fields its Kind needs are read: Fact for raw
// fact ops, Individual and Expression for types, Individual/Property/Value
// for annotations and Individual/Property/Object for relations.
type Op struct {
	Kind             OpKind        `json:"kind"`
	Fact             domain.Fact   `json:"fact,omitempty"`
	Individual       domain.IRI    `json:"individual,omitempty"`
	Expression       string        `json:"expression,omitempty"`
	Property         domain.IRI    `json:"property,omitempty"`
	Object           domain.IRI    `json:"object,omitempty"`
	Value            string        `json:"value,omitempty"`
	Format           domain.Format `json:"format,omitempty"`
	ClearUndoHistory bool          `json:"clear_undo_history,omitempty"`
}

// Request is a batch of operations against one model. A create_blank_model
// op retargets the following ops at the new model.
type Request struct {
	ModelID       domain.ModelID  `json:"model_id,omitempty"`
	Ops           []Op            `json:"ops"`
	Metadata      domain.Metadata `json:"metadata"`
	FlushReasoner bool            `json:"flush_reasoner,omitempty"`
}

// OpResult reports the outcome of one executed op.
type OpResult struct {
	Kind    OpKind          `json:"kind"`
	Edits   domain.EditList `json:"edits,omitempty"`
	Applied bool            `json:"applied"`
	Data    []byte          `json:"data,omitempty"`
}

// Response carries the results of the ops that ran, the model's modified flag
// after the batch and the error that stopped it, if any.
type Response struct {
	ModelID  domain.ModelID `json:"model_id"`
	Results  []OpResult     `json:"results"`
	Modified bool           `json:"modified"`
	Err      error          `json:"-"`
}

// Execute runs req in order and stops at the first failing op. Ops that ran
// before the failure stay applied. All edits share one coalescing token so
// the batch undoes as a single unit unless it contains undo or redo.
func (u *UndoAwareRegistry) Execute(ctx context.Context, req Request) Response {
	meta := req.Metadata
	if meta.Token == "" {
		meta.Token = uuid.NewString()
	}
	resp := Response{ModelID: req.ModelID}
	for i, op := range req.Ops {
		res, err := u.execute(ctx, &resp, op, meta)
		if err != nil {
			resp.Err = fmt.Errorf("op %d (%s): %w", i, op.Kind, err)
			break
		}
		resp.Results = append(resp.Results, res)
	}
	if resp.Err == nil && req.FlushReasoner && resp.ModelID != "" {
		resp.Err = u.Flush(ctx, resp.ModelID)
	}
	resp.Modified, _ = u.Modified(resp.ModelID)
	return resp
}

func (u *UndoAwareRegistry) execute(ctx context.Context, resp *Response, op Op, meta domain.Metadata) (OpResult, error) {
	res := OpResult{Kind: op.Kind}
	if op.Kind == OpCreateBlankModel {
		inst, err := u.GenerateBlankModel(ctx, meta)
		if err != nil {
			return res, err
		}
		resp.ModelID = inst.ID()
		res.Applied = true
		return res, nil
	}
	id := resp.ModelID
	if id == "" {
		return res, &domain.MalformedInputError{Source: string(op.Kind), Reason: "no target model"}
	}

	var produce EditProducer
	switch op.Kind {
	case OpAddFact:
		produce = AddFacts(op.Fact)
	case OpRemoveFact:
		produce = RemoveFacts(op.Fact)
	case OpAddType:
		produce = AddType(u.tbox, op.Individual, op.Expression)
	case OpRemoveType:
		produce = RemoveType(op.Individual, op.Expression)
	case OpAddAnnotation:
		produce = AddAnnotation(id, op.Individual, op.Property, op.Value)
	case OpRemoveAnnotation:
		produce = RemoveAnnotation(op.Individual, op.Property, op.Value)
	case OpAddIndividual:
		var types []string
		if op.Expression != "" {
			types = append(types, op.Expression)
		}
		produce = AddIndividual(u.tbox, op.Individual, types...)
	case OpDeleteIndividual:
		produce = DeleteIndividual(op.Individual)
	case OpAddRelation:
		produce = AddRelation(u.tbox, op.Individual, op.Property, op.Object)
	case OpRemoveRelation:
		produce = RemoveRelation(op.Individual, op.Property, op.Object)
	case OpUndo:
		applied, err := u.Undo(ctx, id, meta.ActorID)
		res.Applied = applied
		return res, err
	case OpRedo:
		applied, err := u.Redo(ctx, id, meta.ActorID)
		res.Applied = applied
		return res, err
	case OpSave:
		err := u.Save(ctx, id, SaveOptions{ClearUndoHistory: op.ClearUndoHistory}, meta)
		res.Applied = err == nil
		return res, err
	case OpExport:
		format := op.Format
		if format == "" {
			format = codec.FormatJSONL
		}
		data, err := u.Export(ctx, id, format)
		res.Data = data
		res.Applied = err == nil
		return res, err
	default:
		return res, &domain.MalformedInputError{Source: string(op.Kind), Reason: "unknown op kind"}
	}

	mut, err := u.ApplyMutation(ctx, id, produce, false, meta)
	if err != nil {
		return res, err
	}
	res.Edits = mut.Edits
	res.Applied = len(mut.Edits) > 0
	return res, nil
}
