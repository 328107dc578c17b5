// Package people resolves person merge chains.
//
// A person is either active or merged into another person. Chains are
// followed iteratively to their terminal (active) node; a visited set bounds
// the walk so a corrupted chain surfaces as model.ErrMergeCycle instead of
// looping.
package people

import (
	"fmt"

	"github.com/kafadas/kinjo/internal/model"
)

// Link is the merge state of one person: Active, or MergedInto a target.
type Link struct {
	target string
}

// Active marks a terminal person.
func Active() Link { return Link{} }

// MergedInto marks a person whose moments now belong to target.
func MergedInto(target string) Link { return Link{target: target} }

// Target returns the merge target, if any.
func (l Link) Target() (string, bool) { return l.target, l.target != "" }

// Graph maps person ids to their merge links.
type Graph map[string]Link

// NewGraph builds the merge graph of a user's people.
func NewGraph(ps []*model.Person) Graph {
	g := make(Graph, len(ps))
	for _, p := range ps {
		if p.MergedInto != nil && *p.MergedInto != "" {
			g[p.PersonID] = MergedInto(*p.MergedInto)
		} else {
			g[p.PersonID] = Active()
		}
	}
	return g
}

// Resolve follows id to its terminal person. Ids absent from the graph are
// their own terminal.
func (g Graph) Resolve(id string) (string, error) {
	visited := make(map[string]struct{}, 4)
	cur := id
	for steps := 0; steps <= len(g); steps++ {
		if _, seen := visited[cur]; seen {
			return "", fmt.Errorf("%w: person %s", model.ErrMergeCycle, id)
		}
		visited[cur] = struct{}{}
		next, ok := g[cur].Target()
		if !ok {
			return cur, nil
		}
		cur = next
	}
	return "", fmt.Errorf("%w: person %s exceeds chain bound", model.ErrMergeCycle, id)
}

// MergeTarget validates merging from into into and returns the terminal
// person that from's moments must be repointed to.
func (g Graph) MergeTarget(from, into string) (string, error) {
	link, ok := g[from]
	if !ok {
		return "", fmt.Errorf("%w: person %s", model.ErrNotFound, from)
	}
	if _, merged := link.Target(); merged {
		return "", fmt.Errorf("%w: person %s is already merged", model.ErrConflict, from)
	}
	if _, ok := g[into]; !ok {
		return "", fmt.Errorf("%w: person %s", model.ErrNotFound, into)
	}
	terminal, err := g.Resolve(into)
	if err != nil {
		return "", err
	}
	if terminal == from {
		return "", fmt.Errorf("%w: %s cannot merge into itself", model.ErrMergeCycle, from)
	}
	return terminal, nil
}

// UniqueCount counts distinct terminal people among ids. Empty ids are skipped.
func (g Graph) UniqueCount(ids []string) (int, error) {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		t, err := g.Resolve(id)
		if err != nil {
			return 0, err
		}
		seen[t] = struct{}{}
	}
	return len(seen), nil
}
