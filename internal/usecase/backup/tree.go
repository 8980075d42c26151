package backup

import (
	"context"
	"fmt"

	"github.com/eslsoft/deeplisten/internal/entity"
)

// treeBinding describes a self-referential kind imported with importTree.
type treeBinding[T any] struct {
	kind string
	// node returns the snapshot id and snapshot parent id of doc.
	node func(doc T) (id string, parent *string)
	// find returns the live id of a match of doc under the resolved parent.
	find func(ctx context.Context, doc T, parent *string) (string, error)
	// create writes doc without a parent.
	create    func(ctx context.Context, doc T) (string, error)
	setParent func(ctx context.Context, liveID string, parent *string) error
}

// importTree imports a forest in two passes. Pass one matches or creates
// every node with no parent, parents first, so merge lookups can use the
// already resolved parent. Pass two patches the parent of every created node
// through the remap table, refusing links that would close a cycle.
func importTree[T any](ctx context.Context, r *resolver, b treeBinding[T], docs []T) error {
	ordered := parentsFirst(docs, b.node)
	inArchive := make(map[string]bool, len(docs))
	for _, doc := range docs {
		id, _ := b.node(doc)
		inArchive[id] = true
	}

	// live id -> live parent id, for nodes this run knows about.
	liveParent := make(map[string]*string, len(ordered))
	created := make([]T, 0, len(ordered))
	dangling := map[string]bool{}

	for _, doc := range ordered {
		id, parent := b.node(doc)
		resolvedParent, resolved := r.remap.lookupRef(b.kind, parent)
		if !resolved && !inArchive[*parent] {
			// Lands at the root, so it is matched among roots.
			r.report.Warn("%s %s: parent %s not in archive, kept at root", b.kind, id, *parent)
			dangling[id] = true
			resolved = true
		}

		// A parent still unresolved here sits in a snapshot cycle; such
		// nodes are always created and linked in pass two.
		if resolved && r.matches(false) && b.find != nil {
			liveID, err := b.find(ctx, doc, resolvedParent)
			if err != nil {
				return fmt.Errorf("find %s %s: %w", b.kind, id, err)
			}
			if liveID != "" {
				r.remap.set(b.kind, id, liveID)
				liveParent[liveID] = resolvedParent
				r.report.Record(b.kind, entity.OutcomeReused)
				continue
			}
		}

		liveID, err := b.create(ctx, doc)
		if err != nil {
			return fmt.Errorf("create %s %s: %w", b.kind, id, err)
		}
		r.remap.set(b.kind, id, liveID)
		liveParent[liveID] = nil
		created = append(created, doc)
		r.report.Record(b.kind, entity.OutcomeCreated)
	}

	for _, doc := range created {
		id, parent := b.node(doc)
		if parent == nil || *parent == "" || dangling[id] {
			continue
		}
		liveID, _ := r.remap.lookup(b.kind, id)
		target, ok := r.remap.lookupRef(b.kind, parent)
		if !ok {
			continue
		}
		if closesCycle(liveParent, liveID, *target) {
			r.report.Warn("%s %s: %v", b.kind, id, entity.ErrFolderCycle)
			continue
		}
		if err := b.setParent(ctx, liveID, target); err != nil {
			return fmt.Errorf("link %s %s: %w", b.kind, id, err)
		}
		liveParent[liveID] = target
	}
	return nil
}

// closesCycle reports whether making parent the parent of id loops back to
// id. Nodes outside links are pre-existing rows whose ancestry this run never
// changes, so the walk stops there.
func closesCycle(links map[string]*string, id, parent string) bool {
	seen := map[string]bool{}
	for cur := parent; ; {
		if cur == id {
			return true
		}
		if seen[cur] {
			return true
		}
		seen[cur] = true
		next, ok := links[cur]
		if !ok || next == nil {
			return false
		}
		cur = *next
	}
}

// parentsFirst orders docs so every parent present in docs precedes its
// children. Nodes caught in a snapshot cycle are appended last.
func parentsFirst[T any](docs []T, node func(T) (string, *string)) []T {
	byID := make(map[string]int, len(docs))
	for i, doc := range docs {
		id, _ := node(doc)
		byID[id] = i
	}
	children := make(map[string][]int, len(docs))
	var queue []int
	for i, doc := range docs {
		_, parent := node(doc)
		if parent != nil {
			if _, ok := byID[*parent]; ok && *parent != "" {
				children[*parent] = append(children[*parent], i)
				continue
			}
		}
		queue = append(queue, i)
	}

	ordered := make([]T, 0, len(docs))
	visited := make([]bool, len(docs))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		if visited[i] {
			continue
		}
		visited[i] = true
		ordered = append(ordered, docs[i])
		id, _ := node(docs[i])
		queue = append(queue, children[id]...)
	}
	for i, doc := range docs {
		if !visited[i] {
			ordered = append(ordered, doc)
		}
	}
	return ordered
}
