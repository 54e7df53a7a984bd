package source

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/mgomes/resumefind/internal/gateway"
	"github.com/mgomes/resumefind/internal/models"
	"go.uber.org/zap"
)

var ErrRejected = errors.New("rejected")

// RejectedError is a local precondition failure. No request was sent.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return e.Reason
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// Status describes the corpus the backend is searching.
// Active is only ever Uploaded while UploadedFiles is non-empty.
type Status struct {
	Active        models.Source
	IndexedCount  int
	UploadedFiles []string
}

func (s Status) clone() Status {
	s.UploadedFiles = slices.Clone(s.UploadedFiles)
	return s
}

type Backend interface {
	FetchStatus(ctx context.Context) (gateway.Status, error)
	UploadResumes(ctx context.Context, docs []models.Document) (gateway.UploadResult, error)
	SetActiveSource(ctx context.Context, source models.Source) (int, error)
	ClearUploads(ctx context.Context) (int, error)
}

// Controller validates source changes and applies what the backend reports.
// The backend is authoritative for counts and file lists.
type Controller struct {
	backend Backend
	logger  *zap.Logger

	mu     sync.RWMutex
	status Status
}

func NewController(backend Backend, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		backend: backend,
		logger:  logger,
		status:  Status{Active: models.SourceLocal},
	}
}

func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status.clone()
}

// Seed loads the initial status. On failure the defaults stay in place.
func (c *Controller) Seed(ctx context.Context) (Status, error) {
	snapshot, err := c.backend.FetchStatus(ctx)
	if err != nil {
		return c.Status(), err
	}

	next := Status{
		Active:        snapshot.Active,
		IndexedCount:  snapshot.IndexedCount,
		UploadedFiles: slices.Clone(snapshot.UploadedFiles),
	}
	if next.Active != models.SourceUploaded || len(next.UploadedFiles) == 0 {
		next.Active = models.SourceLocal
		next.UploadedFiles = nil
	}

	return c.replace(next), nil
}

// RequestSwitch changes the active source. changed is false when target was
// already active, in which case no request is made.
func (c *Controller) RequestSwitch(ctx context.Context, target models.Source) (status Status, changed bool, err error) {
	current := c.Status()
	if target == models.SourceUploaded && len(current.UploadedFiles) == 0 {
		return current, false, &RejectedError{Reason: "uploaded set is empty"}
	}
	if target == current.Active {
		return current, false, nil
	}

	count, err := c.backend.SetActiveSource(ctx, target)
	if err != nil {
		return current, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A clear may have landed while the switch was in flight.
	if target == models.SourceUploaded && len(c.status.UploadedFiles) == 0 {
		return c.status.clone(), false, &RejectedError{Reason: "uploaded set is empty"}
	}
	c.status.Active = target
	c.status.IndexedCount = count
	c.logger.Info("resume source switched", zap.String("source", target.String()), zap.Int("indexed", count))

	return c.status.clone(), true, nil
}

// RecordUpload uploads docs and makes the uploaded set active.
func (c *Controller) RecordUpload(ctx context.Context, docs []models.Document) (Status, error) {
	if len(docs) == 0 {
		return c.Status(), &RejectedError{Reason: "no files to upload"}
	}

	result, err := c.backend.UploadResumes(ctx, docs)
	if err != nil {
		return c.Status(), err
	}
	if len(result.UploadedFiles) == 0 {
		return c.Status(), &RejectedError{Reason: "the server accepted none of the files"}
	}

	c.logger.Info("resumes uploaded", zap.Int("sent", len(docs)), zap.Int("accepted", len(result.UploadedFiles)))

	return c.replace(Status{
		Active:        models.SourceUploaded,
		IndexedCount:  result.IndexedCount,
		UploadedFiles: slices.Clone(result.UploadedFiles),
	}), nil
}

// Clear removes uploads and forces the local source.
func (c *Controller) Clear(ctx context.Context) (Status, error) {
	count, err := c.backend.ClearUploads(ctx)
	if err != nil {
		return c.Status(), err
	}

	c.logger.Info("uploads cleared", zap.Int("indexed", count))

	return c.replace(Status{
		Active:       models.SourceLocal,
		IndexedCount: count,
	}), nil
}

func (c *Controller) replace(next Status) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = next
	return c.status.clone()
}
