// Package workflow holds the status-transition tables for every stateful entity.
package workflow

import (
	"fmt"
	"sort"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
)

// ErrInvalidTransition is returned (wrapped in a TransitionError) for moves the table does not permit.
var ErrInvalidTransition = httpx.ErrInvalidTransition

// TransitionError carries the rejected move.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %q to %q", e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// FieldErrors exposes the rejected move in the error response body.
func (e *TransitionError) FieldErrors() map[string]string {
	return map[string]string{"from": e.From, "to": e.To}
}

// Machine is a finite-state machine over a string-backed status type.
type Machine[S ~string] struct {
	entity string
	edges  map[S][]S
}

// New builds a machine for entity. Every target state must also be declared as a key, so a typo in
// the table fails at start-up rather than at the first request.
func New[S ~string](entity string, edges map[S][]S) *Machine[S] {
	copied := make(map[S][]S, len(edges))
	for from, targets := range edges {
		for _, to := range targets {
			if _, ok := edges[to]; !ok {
				panic(fmt.Sprintf("workflow: %s target %q from %q is not a declared state", entity, to, from))
			}
		}
		copied[from] = append([]S(nil), targets...)
	}
	return &Machine[S]{entity: entity, edges: copied}
}

// Entity returns the name used in errors.
func (m *Machine[S]) Entity() string { return m.entity }

// IsKnown reports whether s is a declared state.
func (m *Machine[S]) IsKnown(s S) bool {
	_, ok := m.edges[s]
	return ok
}

// Allows reports whether from → to is permitted. Staying in place is always permitted.
func (m *Machine[S]) Allows(from, to S) bool {
	if from == to {
		return true
	}
	for _, next := range m.edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Next returns the states reachable in one step from from. Unknown and terminal states yield an
// empty, non-nil slice.
func (m *Machine[S]) Next(from S) []S {
	out := make([]S, 0, len(m.edges[from]))
	return append(out, m.edges[from]...)
}

// Validate returns a TransitionError when the move is not allowed.
func (m *Machine[S]) Validate(from, to S) error {
	if !m.IsKnown(to) || !m.Allows(from, to) {
		return &TransitionError{Entity: m.entity, From: string(from), To: string(to)}
	}
	return nil
}

// States lists every declared state in lexical order.
func (m *Machine[S]) States() []S {
	out := make([]S, 0, len(m.edges))
	for s := range m.edges {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
