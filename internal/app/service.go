// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/plank/internal/adapters/history"
	framequeue "github.com/okian/plank/internal/adapters/mq/queue"
	workerpool "github.com/okian/plank/internal/adapters/mq/worker"
	repository "github.com/okian/plank/internal/adapters/repository"
	"github.com/okian/plank/internal/domain/classify"
	"github.com/okian/plank/internal/domain/dedupe"
	"github.com/okian/plank/internal/domain/gate"
	"github.com/okian/plank/internal/domain/model"
	"github.com/okian/plank/internal/domain/pose"
	"github.com/okian/plank/internal/domain/session"
	"github.com/okian/plank/internal/domain/types"
	"github.com/okian/plank/pkg/logger"
	"github.com/okian/plank/pkg/metrics"
)

// Service implements the API dependencies for the plank tracker.
type Service struct {
	mu sync.RWMutex

	// Core components
	leaderboard repository.Store
	deduper     dedupe.Deduper
	frameQueue  framequeue.Queue
	classifier  *classify.RuleClassifier
	sessions    *session.Registry
	history     *history.Store
	workerPool  *workerpool.Pool

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	// Classifier calibration
	view          string
	minVisibility float64
	passThreshold float64
	maxViolations int
	// Gate streaks
	stabilityFrames int
	graceFrames     int
	// Session and storage configuration
	idleTimeout      time.Duration
	historyPath      string
	snapshotInterval time.Duration
	topCacheSize     int

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of classification workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the frame queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithView selects the expected camera angle, "side" or "front".
func WithView(view string) Option {
	return func(s *Service) {
		if view != "" {
			s.view = view
		}
	}
}

// WithMinVisibility sets the landmark visibility floor.
func WithMinVisibility(v float64) Option {
	return func(s *Service) {
		if v >= 0 && v <= 1 {
			s.minVisibility = v
		}
	}
}

// WithPassThreshold sets the confidence a frame needs to count as a plank.
func WithPassThreshold(t float64) Option {
	return func(s *Service) {
		if t >= 0 && t <= 100 {
			s.passThreshold = t
		}
	}
}

// WithMaxViolations caps simultaneous form violations on a passing frame.
func WithMaxViolations(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxViolations = n
		}
	}
}

// WithStabilityFrames sets the pass streak that confirms a hold.
func WithStabilityFrames(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.stabilityFrames = n
		}
	}
}

// WithGracePeriodFrames sets the fail streak tolerated before a hold ends.
func WithGracePeriodFrames(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.graceFrames = n
		}
	}
}

// WithIdleTimeout sets how long a session may idle before pruning.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithHistoryPath names the SQLite file for completed holds. An empty
// path disables hold history.
func WithHistoryPath(path string) Option {
	return func(s *Service) {
		s.historyPath = path
	}
}

// WithSnapshotInterval sets the leaderboard snapshot rebuild cadence.
func WithSnapshotInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.snapshotInterval = d
		}
	}
}

// WithTopCacheSize bounds the leaderboard snapshot's cached prefix.
func WithTopCacheSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.topCacheSize = size
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      4,
		queueSize:        4096,
		dedupeSize:       100_000,
		view:             "side",
		minVisibility:    classify.DefaultMinVisibility,
		passThreshold:    classify.DefaultPassThreshold,
		maxViolations:    classify.DefaultMaxViolations,
		stabilityFrames:  gate.DefaultStabilityFrames,
		graceFrames:      gate.DefaultGracePeriodFrames,
		idleTimeout:      5 * time.Minute,
		historyPath:      "plank.db",
		snapshotInterval: 2 * time.Second,
		topCacheSize:     1000,
		stopCh:           make(chan struct{}),
		logger:           nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting plank tracker service...")

	view, err := pose.ParseView(s.view)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStart, err)
	}

	s.classifier, err = classify.New(
		classify.WithView(view),
		classify.WithMinVisibility(s.minVisibility),
		classify.WithPassThreshold(s.passThreshold),
		classify.WithMaxViolations(s.maxViolations),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStart, err)
	}

	s.sessions, err = session.NewRegistry(
		session.WithStabilityFrames(s.stabilityFrames),
		session.WithGracePeriodFrames(s.graceFrames),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStart, err)
	}

	s.leaderboard = repository.NewTreapStore(ctx,
		repository.WithSnapshotInterval(s.snapshotInterval),
		repository.WithTopCacheSize(s.topCacheSize),
	)
	s.logger.Info(ctx, "using treap store")

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.frameQueue = framequeue.NewInMemoryQueue(
		framequeue.WithCapacity(s.queueSize),
		framequeue.WithBufferSize(s.queueSize),
	)

	if s.historyPath != "" {
		h, err := history.Open(ctx, s.historyPath)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStart, err)
		}
		s.history = h
		s.logger.Info(ctx, "hold history enabled", logger.String("path", s.historyPath))
	} else {
		s.logger.Info(ctx, "hold history disabled")
	}

	// Keep the Recorder interface nil when history is off. Assigning a nil
	// *history.Store directly would make the interface non-nil.
	var recorder workerpool.Recorder
	if s.history != nil {
		recorder = s.history
	}

	s.workerPool = workerpool.NewPool(s.workerCount, s.frameQueue, s.classifier, s.sessions, s.leaderboard, recorder)
	s.workerPool.Start(ctx)

	// stopCh is per-start; Stop closes it
	s.stopCh = make(chan struct{})
	go s.pruneLoop(s.stopCh, s.sessions)

	s.started = true
	s.logger.Info(ctx, "plank tracker service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("view", view.String()),
	)

	return nil
}

// pruneLoop drops idle sessions until stopCh closes. It operates only on
// its arguments; Start may have replaced the Service fields by the time a
// draining loop observes the close.
func (s *Service) pruneLoop(stopCh chan struct{}, sessions *session.Registry) {
	ticker := time.NewTicker(s.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if n := sessions.PruneIdle(s.idleTimeout); n > 0 {
				s.logger.Debug(context.Background(), "pruned idle sessions",
					logger.Int("count", n),
				)
			}
		}
	}
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping plank tracker service...")

	// Stop worker pool first so nothing writes to the stores below mid-close
	if s.workerPool != nil {
		s.workerPool.Stop()
	}

	// Close leaderboard store
	if s.leaderboard != nil {
		if closer, ok := s.leaderboard.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}

	// Close queue
	if q, ok := s.frameQueue.(*framequeue.InMemoryQueue); ok {
		_ = q.Close()
	}

	// Close hold history
	if s.history != nil {
		_ = s.history.Close()
	}

	// Signal prune loop to stop
	select {
	case <-s.stopCh:
		// Channel already closed
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(context.Background(), "plank tracker service stopped")
}

// SeenAndRecord atomically checks if a frame id was seen and records it if not.
// Returns true if the frame was already seen, false if it was newly recorded.
// This is the ONLY method for deduplication - thread-safe and atomic.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordFrameDuplicate()
	}
	return seen
}

// Unrecord removes a frame ID from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// EnqueueFrame submits a frame for asynchronous classification.
// Returns false when the queue is full.
func (s *Service) EnqueueFrame(ctx context.Context, f model.Frame) bool {
	s.logger.Debug(ctx, "enqueueing frame",
		logger.String("frameID", f.FrameID),
		logger.String("sessionID", f.SessionID),
	)

	ok := s.frameQueue.Enqueue(ctx, f)
	if ok {
		metrics.RecordFrameAccepted()
		metrics.UpdateQueueSize(s.frameQueue.Len(ctx))
	}
	return ok
}

// Classify runs the classifier on a single frame with no session side effects.
func (s *Service) Classify(f pose.Frame) classify.Result {
	return s.classifier.Classify(f)
}

// SessionState returns the live state of a tracking session.
func (s *Service) SessionState(_ context.Context, sessionID string) (session.State, bool) {
	t, ok := s.sessions.Get(sessionID)
	if !ok {
		return session.State{}, false
	}
	return t.State(), true
}

// ResetSession clears gate and hold progress for a session. Returns false
// if the session is unknown.
func (s *Service) ResetSession(_ context.Context, sessionID string) bool {
	return s.sessions.Reset(sessionID)
}

// TopN returns the top N leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	entries, err := s.leaderboard.TopN(ctx, n)
	if err != nil {
		return nil, err
	}

	// Convert to API format
	apiEntries := make([]types.Entry, len(entries))
	for i, entry := range entries {
		apiEntries[i] = types.Entry{
			Rank:        entry.Rank,
			SubjectID:   entry.SubjectID,
			BestSeconds: entry.Seconds,
		}
	}

	return apiEntries, nil
}

// Rank returns the rank and best hold for a given subject id.
func (s *Service) Rank(ctx context.Context, subjectID string) (types.Entry, error) {
	entry, err := s.leaderboard.Rank(ctx, subjectID)
	if err != nil {
		return types.Entry{}, err
	}

	return types.Entry{
		Rank:        entry.Rank,
		SubjectID:   entry.SubjectID,
		BestSeconds: entry.Seconds,
	}, nil
}

// RecentHolds lists a subject's most recent completed holds, newest first.
func (s *Service) RecentHolds(ctx context.Context, subjectID string, limit int) ([]types.HoldRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}

	holds, err := s.history.RecentBySubject(ctx, subjectID, limit)
	if err != nil {
		return nil, err
	}

	records := make([]types.HoldRecord, len(holds))
	for i, h := range holds {
		records[i] = types.HoldRecord{
			ID:            h.ID,
			SessionID:     h.SessionID,
			StartedAt:     h.StartedAt,
			EndedAt:       h.EndedAt,
			Seconds:       h.Seconds,
			Frames:        h.Frames,
			AvgConfidence: h.AvgConfidence,
			View:          h.View,
		}
	}

	return records, nil
}

// HoldSummary aggregates a subject's recorded holds.
func (s *Service) HoldSummary(ctx context.Context, subjectID string) (types.HoldSummary, error) {
	if s.history == nil {
		return types.HoldSummary{}, ErrHistoryDisabled
	}

	sum, err := s.history.SubjectSummary(ctx, subjectID)
	if err != nil {
		return types.HoldSummary{}, err
	}

	return types.HoldSummary{
		Holds:        sum.Holds,
		TotalSeconds: sum.TotalSeconds,
		BestSeconds:  sum.BestSeconds,
		AvgSeconds:   sum.AvgSeconds,
		LastHoldAt:   sum.LastHoldAt,
	}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":        s.started,
		"worker_count":   s.workerCount,
		"queue_capacity": s.queueSize,
		"dedupe_size":    s.dedupeSize,
	}

	if s.started {
		queueLen := s.frameQueue.Len(ctx)
		totalSubjects := s.leaderboard.Count(ctx)

		stats["queue_size"] = queueLen
		stats["total_subjects"] = totalSubjects
		stats["total_sessions"] = s.sessions.Len()
		stats["dedupe_entries"] = s.deduper.Size()

		// Update metrics
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTotalSubjects(totalSubjects)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
