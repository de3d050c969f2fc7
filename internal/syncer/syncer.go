// Package syncer owns blackboard to backend synchronization.
//
// Ownership boundary:
// - Syncer capability (push a region, optionally pull it back)
// - per-operation Set aggregation with identity de-duplication
// - backend factory registry and the built-in backends (virtual, memory, badger)
//
// A Set never stops at the first failure: every member is invoked and every
// failure message is kept. Already pushed backends are not rolled back.
package syncer

import (
	"fmt"
	"strings"

	"github.com/danmuck/paramctl/internal/blackboard"
)

// Syncer pushes the blackboard region it owns to a backend. With pullBack it
// then reads the backend state back into the blackboard.
type Syncer interface {
	Sync(bb *blackboard.Blackboard, pullBack bool) error
}

// Outcome distinguishes an empty set from a fully successful one.
type Outcome int

const (
	OutcomeNoBackends Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoBackends:
		return "no_backends"
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result summarizes one Set.Sync call.
type Result struct {
	Outcome Outcome
	Synced  int
	Errors  []string
}

func (r Result) OK() bool {
	return r.Outcome != OutcomeFailure
}

// Err returns nil unless at least one syncer failed.
func (r Result) Err() error {
	if r.Outcome != OutcomeFailure {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	copy(msgs, r.Errors)
	return &SyncError{Messages: msgs}
}

// SyncError aggregates every failing syncer message of one Set.Sync call.
type SyncError struct {
	Messages []string
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync failed (%d): %s", len(e.Messages), strings.Join(e.Messages, "; "))
}

// Set is an ordered collection of distinct syncers. Members must be
// comparable (pointer implementations are).
type Set struct {
	items []Syncer
	seen  map[Syncer]struct{}
}

func NewSet() *Set {
	return &Set{seen: make(map[Syncer]struct{})}
}

// Add appends sy unless it is nil or already present.
func (s *Set) Add(sy Syncer) {
	if sy == nil {
		return
	}
	if s.seen == nil {
		s.seen = make(map[Syncer]struct{})
	}
	if _, ok := s.seen[sy]; ok {
		return
	}
	s.seen[sy] = struct{}{}
	s.items = append(s.items, sy)
}

// Merge adds every member of other, keeping other's order.
func (s *Set) Merge(other *Set) {
	if other == nil {
		return
	}
	for _, sy := range other.items {
		s.Add(sy)
	}
}

func (s *Set) Len() int {
	return len(s.items)
}

// Sync invokes every member in insertion order.
func (s *Set) Sync(bb *blackboard.Blackboard, pullBack bool) Result {
	if len(s.items) == 0 {
		return Result{Outcome: OutcomeNoBackends}
	}
	res := Result{Outcome: OutcomeSuccess}
	for _, sy := range s.items {
		if err := sy.Sync(bb, pullBack); err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		res.Synced++
	}
	if len(res.Errors) > 0 {
		res.Outcome = OutcomeFailure
	}
	return res
}
