package visit

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"fieldsync/internal/backend"
	"fieldsync/internal/config"
	"fieldsync/internal/geo"
	"fieldsync/internal/logging"
	"fieldsync/internal/photo"
	"fieldsync/internal/queue"
	"fieldsync/internal/session"
	"fieldsync/internal/tasks"
)

// API is the backend surface used by interactive actions.
type API interface {
	AssignedStores(ctx context.Context) ([]backend.Store, error)
	StoreWorkflows(ctx context.Context, storeID string) ([]backend.Workflow, error)
	Workflow(ctx context.Context, workflowID string) (backend.Workflow, error)
	CheckIn(ctx context.Context, storeID string, at geo.Location) (backend.StoreVisit, error)
	CheckOut(ctx context.Context, visitID string) error
	SubmitWorkflowLog(ctx context.Context, entry queue.WorkflowLog) error
	UploadPhoto(ctx context.Context, img photo.Image, slot queue.PhotoSlot, taskID string) (backend.UploadResult, error)
}

// Queue accepts writes deferred while offline.
type Queue interface {
	Add(ctx context.Context, payload queue.Payload) (*queue.Item, error)
}

// Sessions persists the active visit between invocations.
type Sessions interface {
	Load() (session.State, error)
	Update(fn func(*session.State) error) error
}

// Service performs interactive actions for one worker.
type Service struct {
	api      API
	queue    Queue
	sessions Sessions
	builder  *tasks.Builder
	radius   float64
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRadius sets the check-in proximity radius in meters.
func WithRadius(meters float64) Option {
	return func(s *Service) {
		if meters > 0 {
			s.radius = meters
		}
	}
}

// WithTextMaxLength sets the fallback maximum for text tasks.
func WithTextMaxLength(n int) Option {
	return func(s *Service) {
		s.builder = tasks.NewBuilder(n).WithClock(s.now)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.builder = s.builder.WithClock(now)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logging.NewComponentLogger(logger, "visit")
	}
}

// New constructs a Service.
func New(api API, q Queue, sessions Sessions, opts ...Option) *Service {
	s := &Service{
		api:      api,
		queue:    q,
		sessions: sessions,
		builder:  tasks.NewBuilder(tasks.DefaultTextMaxLength),
		radius:   geo.DefaultRadiusMeters,
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig applies the [proximity] and [tasks] sections.
func NewFromConfig(cfg *config.Config, api API, q Queue, sessions Sessions, logger *slog.Logger) *Service {
	return New(api, q, sessions,
		WithRadius(cfg.Proximity.RadiusMeters),
		WithTextMaxLength(cfg.Tasks.TextMaxLength),
		WithLogger(logger),
	)
}

// Radius returns the proximity radius in meters.
func (s *Service) Radius() float64 {
	return s.radius
}

// sortTasks orders tasks by their Order field, keeping backend order for ties.
func sortTasks(wf *backend.Workflow) {
	slices.SortStableFunc(wf.Tasks, func(a, b backend.Task) int {
		return cmp.Compare(a.Order, b.Order)
	})
}
