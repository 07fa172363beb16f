package modelstore

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"modelcore/internal/codec"
	"modelcore/pkg/domain"
)

// DuplicatePolicy decides what happens to an import item whose ID is
// already stored.
type DuplicatePolicy string

const (
	// DuplicateReject fails the item with an AlreadyExists error.
	DuplicateReject DuplicatePolicy = "reject"
	// DuplicateSkip logs and skips the item.
	DuplicateSkip DuplicatePolicy = "skip"
	// DuplicateOverwrite replaces the stored partition. Two items of one batch
	// declaring the same ID are still rejected.
	DuplicateOverwrite DuplicatePolicy = "overwrite"
)

// Source is one serialized model graph to import.
type Source struct {
	Name string
	Data []byte
	// Format selects the codec; empty picks one from Name's extension.
	Format domain.Format
}

// ImportOptions control ImportBulk.
type ImportOptions struct {
	SkipMarkedDeleted bool
	Duplicates        DuplicatePolicy
	// Live reports IDs held by a caller outside durable storage, such as an
	// unsaved model. They collide exactly like stored partitions.
	Live func(domain.ModelID) bool
}

// ItemStatus is the outcome of one import item.
type ItemStatus string

// Import item outcomes.
const (
	ItemImported         ItemStatus = "imported"
	ItemSkippedDeleted   ItemStatus = "skipped_deleted"
	ItemSkippedDuplicate ItemStatus = "skipped_duplicate"
	ItemFailed           ItemStatus = "failed"
)

// ItemResult reports one import item.
type ItemResult struct {
	Source    string
	ModelID   domain.ModelID
	Status    ItemStatus
	Facts     int
	Overwrote bool
	Err       error
}

// ImportReport lists item results in input order.
type ImportReport struct {
	Items []ItemResult
}

// Imported returns the IDs committed by the batch.
func (r ImportReport) Imported() []domain.ModelID {
	var out []domain.ModelID
	for _, it := range r.Items {
		if it.Status == ItemImported {
			out = append(out, it.ModelID)
		}
	}
	return out
}

// Failed returns the failed items.
func (r ImportReport) Failed() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if it.Status == ItemFailed {
			out = append(out, it)
		}
	}
	return out
}

type scanned struct {
	id      domain.ModelID
	facts   []domain.Fact
	deleted bool
	err     error
}

// Scan decodes src and inspects it before anything is committed: the
// self-declared ontology ID, the delete marker and import declarations,
// which are stripped.
func Scan(src Source) (domain.ModelID, []domain.Fact, bool, error) {
	c := codec.ForPath(src.Name)
	if src.Format != "" {
		var err error
		if c, err = codec.For(src.Format); err != nil {
			return "", nil, false, &domain.MalformedInputError{Source: src.Name, Reason: "import format", Err: err}
		}
	}
	facts, err := c.Decode(src.Data)
	if err != nil {
		return "", nil, false, &domain.MalformedInputError{Source: src.Name, Reason: "decode", Err: err}
	}
	for _, f := range facts {
		if err := f.Validate(); err != nil {
			return "", nil, false, &domain.MalformedInputError{Source: src.Name, Reason: "invalid fact", Err: err}
		}
	}
	id, ok := domain.NewGraph(facts...).OntologyID()
	if !ok {
		return "", nil, false, domain.MissingIdentifier(src.Name)
	}
	return id, Prepare(id, facts), IsMarkedDeleted(id, facts), nil
}

// IsMarkedDeleted reports whether facts carry the delete marker on id.
func IsMarkedDeleted(id domain.ModelID, facts []domain.Fact) bool {
	for _, f := range facts {
		if f.Kind == domain.FactAnnotation && f.Subject == domain.IRI(id) &&
			f.Predicate == domain.ModelStateProperty && f.Literal == domain.ModelStateDelete {
			return true
		}
	}
	return false
}

type claimSet struct {
	mu  sync.Mutex
	ids map[domain.ModelID]struct{}
}

func (c *claimSet) claim(id domain.ModelID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.ids[id]; taken {
		return false
	}
	c.ids[id] = struct{}{}
	return true
}

func (c *claimSet) release(id domain.ModelID) {
	c.mu.Lock()
	delete(c.ids, id)
	c.mu.Unlock()
}

// recheckClaimed looks at storage again once id is claimed, since a
// concurrent batch may have committed it after ListIDs ran. An empty status
// accepts the item.
func (s *Store) recheckClaimed(ctx context.Context, id domain.ModelID, inStore bool, policy DuplicatePolicy) (ItemStatus, error) {
	if inStore || policy == DuplicateOverwrite {
		return "", nil
	}
	committed, err := s.parts.HasPartition(ctx, id)
	switch {
	case err != nil:
		return ItemFailed, durable("import", id, err)
	case !committed:
		return "", nil
	case policy == DuplicateSkip:
		return ItemSkippedDuplicate, nil
	default:
		return ItemFailed, &domain.AlreadyExistsError{ModelID: id}
	}
}

// ImportBulk imports every source as its own partition. Items are scanned in
// parallel, duplicates are resolved in input order, and accepted items commit
// in parallel, one transaction each. One item's failure never aborts its
// siblings; only context cancellation fails the whole call.
func (s *Store) ImportBulk(ctx context.Context, sources []Source, opts ImportOptions) (ImportReport, error) {
	if opts.Duplicates == "" {
		opts.Duplicates = DuplicateReject
	}
	scans := make([]scanned, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			id, facts, deleted, err := Scan(src)
			scans[i] = scanned{id: id, facts: facts, deleted: deleted, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ImportReport{}, err
	}

	stored, err := s.ListIDs(ctx)
	if err != nil {
		return ImportReport{}, err
	}
	existing := make(map[domain.ModelID]struct{}, len(stored))
	for _, id := range stored {
		existing[id] = struct{}{}
	}

	report := ImportReport{Items: make([]ItemResult, len(sources))}
	batch := make(map[domain.ModelID]struct{}, len(sources))
	var accepted []int
	for i, sc := range scans {
		item := ItemResult{Source: sources[i].Name, ModelID: sc.id, Facts: len(sc.facts)}
		switch {
		case sc.err != nil:
			item.Status, item.Err = ItemFailed, sc.err
		case sc.deleted && opts.SkipMarkedDeleted:
			item.Status = ItemSkippedDeleted
		default:
			_, inBatch := batch[sc.id]
			_, inStore := existing[sc.id]
			if !inStore && opts.Live != nil && opts.Live(sc.id) {
				inStore = true
			}
			switch {
			case inBatch && opts.Duplicates == DuplicateSkip:
				item.Status = ItemSkippedDuplicate
			case inBatch:
				item.Status, item.Err = ItemFailed, &domain.AlreadyExistsError{ModelID: sc.id}
			case inStore && opts.Duplicates == DuplicateReject:
				item.Status, item.Err = ItemFailed, &domain.AlreadyExistsError{ModelID: sc.id}
			case inStore && opts.Duplicates == DuplicateSkip:
				item.Status = ItemSkippedDuplicate
			case !s.claims.claim(sc.id):
				// another batch is committing the same ID right now
				item.Status, item.Err = ItemFailed, &domain.AlreadyExistsError{ModelID: sc.id}
			default:
				if status, err := s.recheckClaimed(ctx, sc.id, inStore, opts.Duplicates); status != "" {
					s.claims.release(sc.id)
					item.Status, item.Err = status, err
					break
				}
				item.Overwrote = inStore
				accepted = append(accepted, i)
			}
			batch[sc.id] = struct{}{}
		}
		report.Items[i] = item
	}

	cg, cctx := errgroup.WithContext(ctx)
	cg.SetLimit(s.concurrency)
	for _, i := range accepted {
		i := i
		cg.Go(func() error {
			sc := scans[i]
			defer s.claims.release(sc.id)
			if err := cctx.Err(); err != nil {
				report.Items[i].Status, report.Items[i].Err = ItemFailed, err
				return nil
			}
			if err := s.replace(cctx, sc.id, sc.facts); err != nil {
				report.Items[i].Status, report.Items[i].Err = ItemFailed, durable("import", sc.id, err)
				return nil
			}
			report.Items[i].Status = ItemImported
			return nil
		})
	}
	_ = cg.Wait()

	for _, it := range report.Items {
		switch it.Status {
		case ItemFailed:
			s.logger.Warn("import item failed", "source", it.Source, "model_id", string(it.ModelID), "err", it.Err)
		case ItemSkippedDeleted, ItemSkippedDuplicate:
			s.logger.Info("import item skipped", "source", it.Source, "model_id", string(it.ModelID), "status", string(it.Status))
		}
	}
	return report, ctx.Err()
}
