package moduletracker

import (
	"fmt"
	"sort"

	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
	"github.com/sunholo/buildtrack/internal/modpath"
)

// Batch accumulates the net update per qualifier across one set of
// atomic events, folding repeated events per spec.md §4.7's merge rules
// and detecting the illegal transitions those rules call out.
type Batch struct {
	tracker *Tracker

	explicitKind map[string]UpdateKind
	explicitPath map[string]modpath.ModulePath
	touched      map[string]bool // qualifiers that received an explicit event this batch

	implicitKind map[string]UpdateKind
}

// NewBatch starts a batch of events against t.
func (t *Tracker) NewBatch() *Batch {
	return &Batch{
		tracker:      t,
		explicitKind: make(map[string]UpdateKind),
		explicitPath: make(map[string]modpath.ModulePath),
		touched:      make(map[string]bool),
		implicitKind: make(map[string]UpdateKind),
	}
}

// mergeFold folds an incoming update transition onto the net state
// already recorded for a qualifier this batch, per spec.md §4.7: "New
// then Delete collapses to Changed; Change then Delete stays Delete;
// Delete then New becomes Changed." New or Changed followed by Changed
// stays Changed. New after New (TRK001), New after Changed (TRK002) and
// Delete after Delete (TRK003) are illegal; the one remaining pair,
// Changed after Delete, is reported as TRK004.
func mergeFold(existing, incoming UpdateKind) (UpdateKind, error) {
	switch {
	case existing == UpdateNew && incoming == UpdateDelete:
		return UpdateChanged, nil
	case existing == UpdateChanged && incoming == UpdateDelete:
		return UpdateDelete, nil
	case existing == UpdateDelete && incoming == UpdateNew:
		return UpdateChanged, nil
	case existing == UpdateNew && incoming == UpdateChanged:
		return UpdateChanged, nil
	case existing == UpdateChanged && incoming == UpdateChanged:
		return UpdateChanged, nil

	case existing == UpdateNew && incoming == UpdateNew:
		return 0, illegalTransition(buildtrackerrors.TRK001, incoming, existing)
	case existing == UpdateChanged && incoming == UpdateNew:
		return 0, illegalTransition(buildtrackerrors.TRK002, incoming, existing)
	case existing == UpdateDelete && incoming == UpdateDelete:
		return 0, illegalTransition(buildtrackerrors.TRK003, incoming, existing)
	default:
		return 0, illegalTransition(buildtrackerrors.TRK004, incoming, existing)
	}
}

func illegalTransition(code string, incoming, existing UpdateKind) error {
	return buildtrackerrors.WrapReport(
		buildtrackerrors.New(code, fmt.Sprintf("illegal update transition: %s after %s", incoming, existing)))
}

// Apply folds one atomic event into the batch, mutating the tracker's
// tables and recording the net explicit/implicit update for its
// qualifier(s). It returns an error (one of TRK001-TRK004) when the
// event's transition, folded against the net state already recorded
// this batch, is illegal.
func (b *Batch) Apply(ev Event) error {
	b.tracker.mu.Lock()
	defer b.tracker.mu.Unlock()

	explicitUpdate := b.tracker.applyExplicit(ev)
	if explicitUpdate != nil {
		q := explicitUpdate.Qualifier
		if existing, ok := b.explicitKind[q]; ok {
			merged, err := mergeFold(existing, explicitUpdate.Kind)
			if err != nil {
				return err
			}
			b.explicitKind[q] = merged
		} else {
			b.explicitKind[q] = explicitUpdate.Kind
		}
		b.touched[q] = true
		if explicitUpdate.ModulePath != nil {
			b.explicitPath[q] = *explicitUpdate.ModulePath
		} else {
			delete(b.explicitPath, q)
		}
	}

	for _, implicitUpdate := range b.tracker.applyImplicit(ev) {
		q := implicitUpdate.Qualifier
		if existing, ok := b.implicitKind[q]; ok && existing != implicitUpdate.Kind {
			// NewImplicit and DeleteImplicit within one batch cancel out:
			// the qualifier ends the batch in the state it started in.
			delete(b.implicitKind, q)
			continue
		}
		b.implicitKind[q] = implicitUpdate.Kind
	}

	return nil
}

// Finish drains the batch into its final update stream: explicit updates
// first, in qualifier order, then implicit updates (suppressed for any
// qualifier that also received an explicit event this batch), also in
// qualifier order. This matches spec.md §5's ordering guarantee.
func (b *Batch) Finish() []Update {
	var out []Update

	explicitQualifiers := make([]string, 0, len(b.explicitKind))
	for q := range b.explicitKind {
		explicitQualifiers = append(explicitQualifiers, q)
	}
	sort.Strings(explicitQualifiers)
	for _, q := range explicitQualifiers {
		kind := b.explicitKind[q]
		u := Update{Kind: kind, Qualifier: q}
		if kind != UpdateDelete {
			if mp, ok := b.explicitPath[q]; ok {
				u.ModulePath = &mp
			}
		}
		out = append(out, u)
	}

	implicitQualifiers := make([]string, 0, len(b.implicitKind))
	for q := range b.implicitKind {
		implicitQualifiers = append(implicitQualifiers, q)
	}
	sort.Strings(implicitQualifiers)
	for _, q := range implicitQualifiers {
		if b.touched[q] {
			continue
		}
		out = append(out, Update{Kind: b.implicitKind[q], Qualifier: q})
	}

	return out
}
