package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mgomes/resumefind/internal/conversation"
	"github.com/mgomes/resumefind/internal/gateway"
	"github.com/mgomes/resumefind/internal/models"
	"github.com/mgomes/resumefind/internal/source"
	"go.uber.org/zap"
)

// ConnectivityMessage is shown in place of results when a search fails.
const ConnectivityMessage = "Sorry, I couldn't connect to the backend. Please make sure the API server is running."

// Busy tags the single network operation that gates new submissions.
type Busy int

const (
	Idle Busy = iota
	Searching
	Uploading
)

func (b Busy) String() string {
	switch b {
	case Searching:
		return "searching"
	case Uploading:
		return "uploading"
	default:
		return "idle"
	}
}

type OpKind int

const (
	OpStart OpKind = iota
	OpSearch
	OpUpload
	OpSwitch
	OpClear
)

// Outcome reports what a finished operation did. Appended is the turn added
// to the log, if any. Alert is a transient notification shown outside the log.
type Outcome struct {
	Kind     OpKind
	Appended conversation.Turn
	Alert    string
	Status   source.Status
	Err      error
}

// Op runs the network half of an intent. Running it more than once has no
// further effect.
type Op func(ctx context.Context) Outcome

type Backend interface {
	source.Backend
	Search(ctx context.Context, query string) (gateway.SearchResult, error)
	ResolveResumeURL(locator string) (*url.URL, error)
}

// Session is the sole writer of the conversation log and the resume source.
type Session struct {
	id         string
	backend    Backend
	controller *source.Controller
	log        *conversation.Log
	logger     *zap.Logger

	mu              sync.Mutex
	busy            Busy
	pending         string
	inflight        map[OpKind]bool
	confirmingClear bool
}

type Option func(*Session)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

func New(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend:  backend,
		log:      conversation.NewLog(),
		logger:   zap.NewNop(),
		inflight: make(map[OpKind]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.logger = s.logger.With(zap.String("session", s.id))
	s.controller = source.NewController(backend, s.logger)

	return s
}

// NewID returns an identifier suitable for WithID and the gateway session header.
func NewID() string {
	return uuid.NewString()
}

func (s *Session) ID() string {
	return s.id
}

// Start seeds the resume source from the backend. A failure leaves the
// defaults in place and is reported as an alert only.
func (s *Session) Start(ctx context.Context) Outcome {
	status, err := s.controller.Seed(ctx)
	if err != nil {
		s.logger.Warn("startup status fetch failed", zap.Error(err))
		return Outcome{
			Kind:   OpStart,
			Alert:  "Could not load the backend status. Showing defaults until the next action.",
			Status: status,
			Err:    err,
		}
	}

	s.logger.Info("session started",
		zap.String("source", status.Active.String()),
		zap.Int("indexed", status.IndexedCount))

	return Outcome{Kind: OpStart, Status: status}
}

func (s *Session) Busy() Busy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) Turns() []conversation.Turn {
	return s.log.Turns()
}

func (s *Session) Len() int {
	return s.log.Len()
}

func (s *Session) Status() source.Status {
	return s.controller.Status()
}

func (s *Session) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Session) SetPending(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = q
}

func (s *Session) ResumeURL(locator string) (string, error) {
	u, err := s.backend.ResolveResumeURL(locator)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// SubmitQuery appends the user turn and marks the session as searching.
// It returns nil, changing nothing, for blank queries or while busy.
func (s *Session) SubmitQuery(q string) Op {
	if strings.TrimSpace(q) == "" {
		return nil
	}

	s.mu.Lock()
	if s.busy != Idle {
		s.mu.Unlock()
		return nil
	}
	s.busy = Searching
	s.pending = ""
	s.log.Append(conversation.UserTurn{Text: q})
	s.mu.Unlock()

	return once(func(ctx context.Context) Outcome {
		result, err := s.backend.Search(ctx, q)

		var turn conversation.Turn
		if err != nil {
			s.logger.Warn("search failed", zap.String("query", q), zap.Error(err))
			turn = conversation.ErrorTurn{Text: ConnectivityMessage}
		} else {
			s.logger.Debug("search done", zap.String("query", q), zap.Int("candidates", len(result.Candidates)))
			turn = conversation.ResultTurn{
				Query:      q,
				Candidates: result.Candidates,
				Notice:     result.Notice,
			}
		}

		s.finish(turn)
		return Outcome{Kind: OpSearch, Appended: turn, Status: s.Status(), Err: err}
	})
}

// UploadFiles marks the session as uploading. It returns nil for an empty
// batch, while busy, or while a source switch or clear is in flight.
func (s *Session) UploadFiles(docs []models.Document) Op {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.busy != Idle || s.inflight[OpSwitch] || s.inflight[OpClear] {
		s.mu.Unlock()
		return nil
	}
	s.busy = Uploading
	s.mu.Unlock()

	return once(func(ctx context.Context) Outcome {
		status, err := s.controller.RecordUpload(ctx, docs)
		if err != nil {
			s.logger.Warn("upload failed", zap.Int("files", len(docs)), zap.Error(err))
			s.finish(nil)
			return Outcome{Kind: OpUpload, Alert: alertFor("Upload failed", err), Status: status, Err: err}
		}

		turn := conversation.ResultTurn{Notice: fmt.Sprintf(
			"Uploaded %d %s. Now searching your uploaded resumes (%d indexed).",
			len(status.UploadedFiles), plural(len(status.UploadedFiles), "resume", "resumes"), status.IndexedCount)}
		s.finish(turn)
		return Outcome{Kind: OpUpload, Appended: turn, Status: status}
	})
}

// ChangeSource switches the searched corpus. It returns nil while another
// switch or an upload is in flight.
func (s *Session) ChangeSource(target models.Source) Op {
	if !s.claim(OpSwitch) {
		return nil
	}

	return once(func(ctx context.Context) Outcome {
		defer s.release(OpSwitch)

		status, changed, err := s.controller.RequestSwitch(ctx, target)
		if err != nil {
			s.logger.Info("source switch refused", zap.String("target", target.String()), zap.Error(err))
			return Outcome{Kind: OpSwitch, Alert: alertFor("Could not switch source", err), Status: status, Err: err}
		}
		if !changed {
			return Outcome{Kind: OpSwitch, Alert: fmt.Sprintf("Already searching the %s resumes.", target), Status: status}
		}

		turn := conversation.ResultTurn{Notice: fmt.Sprintf(
			"Switched to %s resumes (%d indexed).", status.Active, status.IndexedCount)}
		s.log.Append(turn)
		return Outcome{Kind: OpSwitch, Appended: turn, Status: status}
	})
}

// RequestClear asks for confirmation before clearing uploads. It reports
// false when a clear or an upload is already in flight.
func (s *Session) RequestClear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[OpClear] || s.busy == Uploading {
		return false
	}
	s.confirmingClear = true
	return true
}

func (s *Session) AwaitingConfirmation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmingClear
}

func (s *Session) CancelClear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmingClear = false
}

// ConfirmClear dispatches a clear previously requested with RequestClear.
func (s *Session) ConfirmClear() Op {
	s.mu.Lock()
	if !s.confirmingClear || s.inflight[OpClear] || s.busy == Uploading {
		s.confirmingClear = false
		s.mu.Unlock()
		return nil
	}
	s.confirmingClear = false
	s.inflight[OpClear] = true
	s.mu.Unlock()

	return once(func(ctx context.Context) Outcome {
		defer s.release(OpClear)

		status, err := s.controller.Clear(ctx)
		if err != nil {
			s.logger.Warn("clear uploads failed", zap.Error(err))
			return Outcome{Kind: OpClear, Alert: alertFor("Could not clear uploads", err), Status: status, Err: err}
		}

		turn := conversation.ResultTurn{Notice: fmt.Sprintf(
			"Cleared uploaded resumes. Back to local resumes (%d indexed).", status.IndexedCount)}
		s.log.Append(turn)
		return Outcome{Kind: OpClear, Appended: turn, Status: status}
	})
}

// finish appends turn, if any, and returns the session to Idle in one step.
func (s *Session) finish(turn conversation.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn != nil {
		s.log.Append(turn)
	}
	s.busy = Idle
}

// claim marks a source operation in flight. Source operations never overlap
// an upload because both write the source status.
func (s *Session) claim(kind OpKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[kind] || s.busy == Uploading {
		return false
	}
	s.inflight[kind] = true
	return true
}

func (s *Session) release(kind OpKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, kind)
}

func once(op Op) Op {
	var (
		o       sync.Once
		outcome Outcome
	)
	return func(ctx context.Context) Outcome {
		o.Do(func() {
			outcome = op(ctx)
		})
		return outcome
	}
}

func alertFor(action string, err error) string {
	var (
		rejected *source.RejectedError
		httpErr  *gateway.HTTPError
	)
	switch {
	case errors.As(err, &rejected):
		return fmt.Sprintf("%s: %s", action, rejected.Reason)
	case errors.As(err, &httpErr) && httpErr.Detail != "":
		return fmt.Sprintf("%s: %s", action, httpErr.Detail)
	case errors.As(err, &httpErr):
		return fmt.Sprintf("%s: server returned %d", action, httpErr.Status)
	case gateway.IsNetwork(err):
		return fmt.Sprintf("%s: could not reach the backend", action)
	default:
		return fmt.Sprintf("%s: %v", action, err)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
