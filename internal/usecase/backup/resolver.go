package backup

import (
	"context"
	"fmt"

	"github.com/eslsoft/deeplisten/internal/entity"
)

// matchPolicy decides what a merge import does with a natural-key match.
type matchPolicy int

const (
	// reuseMatch maps the snapshot row onto the live row untouched.
	reuseMatch matchPolicy = iota
	// updateMatch maps and overwrites the live row with snapshot values.
	updateMatch
	// skipMatch drops the snapshot row and records no mapping, so its
	// children are skipped too.
	skipMatch
)

// binding describes how snapshot rows of one kind are matched and written.
type binding[T any] struct {
	kind   string
	policy matchPolicy
	// global kinds are matched by natural key in every mode.
	global bool
	// find returns the live id of the natural-key match, or "".
	find   func(ctx context.Context, doc T) (string, error)
	create func(ctx context.Context, doc T) (string, error)
	update func(ctx context.Context, liveID string, doc T) error
}

// remapTable maps snapshot ids to live ids, one map per kind.
type remapTable map[string]map[string]string

func (t remapTable) set(kind, from, to string) {
	m, ok := t[kind]
	if !ok {
		m = make(map[string]string)
		t[kind] = m
	}
	m[from] = to
}

func (t remapTable) lookup(kind, from string) (string, bool) {
	id, ok := t[kind][from]
	return id, ok
}

// lookupRef resolves an optional reference. A nil reference resolves to nil;
// ok is false only when a set reference has no mapping.
func (t remapTable) lookupRef(kind string, from *string) (*string, bool) {
	if from == nil || *from == "" {
		return nil, true
	}
	id, ok := t.lookup(kind, *from)
	if !ok {
		return nil, false
	}
	return &id, true
}

// resolver carries the state of one import run.
type resolver struct {
	mode   entity.ImportMode
	remap  remapTable
	report *entity.JobReport
}

func newResolver(mode entity.ImportMode, report *entity.JobReport) *resolver {
	return &resolver{mode: mode, remap: remapTable{}, report: report}
}

// matches reports whether natural-key lookups apply to b in this run.
func (r *resolver) matches(global bool) bool {
	return r.mode == entity.ImportModeMerge || global
}

// skip records a snapshot row that was not written.
func (r *resolver) skip(kind string) {
	r.report.Record(kind, entity.OutcomeSkipped)
}

// resolve writes or matches one snapshot row and records its mapping. It
// returns the live id and false when the row was skipped.
func resolve[T any](ctx context.Context, r *resolver, b binding[T], snapshotID string, doc T) (string, bool, error) {
	if r.matches(b.global) && b.find != nil {
		liveID, err := b.find(ctx, doc)
		if err != nil {
			return "", false, fmt.Errorf("find %s %s: %w", b.kind, snapshotID, err)
		}
		if liveID != "" {
			switch b.policy {
			case skipMatch:
				r.report.Record(b.kind, entity.OutcomeSkipped)
				return "", false, nil
			case updateMatch:
				if b.update != nil {
					if err := b.update(ctx, liveID, doc); err != nil {
						return "", false, fmt.Errorf("update %s %s: %w", b.kind, snapshotID, err)
					}
					r.remap.set(b.kind, snapshotID, liveID)
					r.report.Record(b.kind, entity.OutcomeUpdated)
					return liveID, true, nil
				}
			}
			r.remap.set(b.kind, snapshotID, liveID)
			r.report.Record(b.kind, entity.OutcomeReused)
			return liveID, true, nil
		}
	}

	liveID, err := b.create(ctx, doc)
	if err != nil {
		return "", false, fmt.Errorf("create %s %s: %w", b.kind, snapshotID, err)
	}
	r.remap.set(b.kind, snapshotID, liveID)
	r.report.Record(b.kind, entity.OutcomeCreated)
	return liveID, true, nil
}
