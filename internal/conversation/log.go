package conversation

import (
	"fmt"
	"slices"
	"sync"

	"github.com/mgomes/resumefind/internal/models"
)

// Turn is one immutable entry in the log: a UserTurn, ResultTurn or ErrorTurn.
type Turn interface {
	turn()
}

// UserTurn is the query exactly as submitted.
type UserTurn struct {
	Text string
}

// ResultTurn carries the candidates for Query. Notice holds the backend's
// zero-match message or an informational note such as an upload confirmation.
type ResultTurn struct {
	Query      string
	Candidates []models.Candidate
	Notice     string
}

// ErrorTurn replaces a result that could not be fetched.
type ErrorTurn struct {
	Text string
}

func (UserTurn) turn()   {}
func (ResultTurn) turn() {}
func (ErrorTurn) turn()  {}

// Caption describes the candidate list. It is empty when there are no candidates.
func (r ResultTurn) Caption() string {
	switch n := len(r.Candidates); n {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("Found 1 candidate matching \"%s\":", r.Query)
	default:
		return fmt.Sprintf("Found %d candidates matching \"%s\":", n, r.Query)
	}
}

// Log is the append-only conversation history of a session.
type Log struct {
	mu    sync.RWMutex
	turns []Turn
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Append(t Turn) {
	t = cloneTurn(t)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, t)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Turns returns a snapshot in append order.
func (l *Log) Turns() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Turn, len(l.turns))
	for i, t := range l.turns {
		out[i] = cloneTurn(t)
	}
	return out
}

func (l *Log) Last() (Turn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.turns) == 0 {
		return nil, false
	}
	return cloneTurn(l.turns[len(l.turns)-1]), true
}

func cloneTurn(t Turn) Turn {
	r, ok := t.(ResultTurn)
	if !ok {
		return t
	}
	candidates := make([]models.Candidate, len(r.Candidates))
	for i, c := range r.Candidates {
		c.Skills = slices.Clone(c.Skills)
		candidates[i] = c
	}
	if r.Candidates == nil {
		candidates = nil
	}
	r.Candidates = candidates
	return r
}
