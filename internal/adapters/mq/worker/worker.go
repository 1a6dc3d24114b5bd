// Package worker defines worker contracts for asynchronous frame
// classification and hold bookkeeping.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/plank/internal/adapters/mq/queue"
	"github.com/okian/plank/internal/domain/classify"
	"github.com/okian/plank/internal/domain/gate"
	"github.com/okian/plank/internal/domain/model"
	"github.com/okian/plank/internal/domain/pose"
	"github.com/okian/plank/internal/domain/session"
	"github.com/okian/plank/pkg/logger"
	"github.com/okian/plank/pkg/metrics"
)

// Default worker configuration constants.
const (
	metricsUpdateInterval = 5 * time.Second
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Frame abstracts what workers read off the queue.
// Using the model.Frame type for consistency.
type Frame = model.Frame

// Classifier produces a per-frame verdict from raw landmarks.
type Classifier interface {
	Classify(f pose.Frame) classify.Result
}

// Sessions hands out the tracker a frame belongs to.
type Sessions interface {
	GetOrCreate(sessionID, subjectID string) (*session.Tracker, error)
}

// Updater updates the best hold for a subject.
type Updater interface {
	UpdateBest(ctx context.Context, subjectID string, seconds float64) (bool, error)
}

// Recorder persists completed holds. May be left nil to disable history.
type Recorder interface {
	RecordHold(ctx context.Context, h model.Hold) error
}

// Queue defines how workers receive frames.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Frame
}

// Worker processes frames and applies them to session state using the
// provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// It will process any remaining frames before stopping.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing frames.
type InMemoryWorker struct {
	queue      Queue
	classifier Classifier
	sessions   Sessions
	updater    Updater
	recorder   Recorder
	name       string
	view       string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Processed-frame callback, used by the pool for throughput metrics
	onProcessed func()

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, classifier Classifier, sessions Sessions, updater Updater, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		classifier: classifier,
		sessions:   sessions,
		updater:    updater,
		recorder:   recorder,
		name:       "worker", // default name
		view:       pose.ViewSide.String(),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"), // will be updated by options
	}

	// Classifiers that know their camera view label the hold records
	if viewer, ok := classifier.(interface{ View() pose.View }); ok {
		w.view = viewer.View().String()
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	// Set up logger with worker name if not already set
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	frameChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case frame, ok := <-frameChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			// Process the frame
			if err := w.processFrame(ctx, frame); err != nil {
				w.logger.Error(ctx, "error processing frame", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	// Signal shutdown
	close(w.shutdown)

	// Wait for worker to finish or context to timeout
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processFrame classifies a single frame, applies it to its session, and
// runs the hold side effects when this frame closed one.
func (w *InMemoryWorker) processFrame(ctx context.Context, frame queue.Frame) error {
	// Track overall processing latency
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordWorkerProcessingLatency(float64(latency))
	}()

	// Track classification latency
	classifyStart := time.Now()
	result := w.classifier.Classify(frame.Landmarks)
	classifyLatency := time.Since(classifyStart).Milliseconds()

	metrics.RecordClassificationLatency(float64(classifyLatency))
	metrics.RecordClassification(w.view, result.IsPlank)
	metrics.RecordConfidence(result.Confidence)

	tracker, err := w.sessions.GetOrCreate(frame.SessionID, frame.SubjectID)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "session_error")
		metrics.RecordErrorByType("session_error", "high")
		w.logger.Error(ctx, "session lookup failed for frame",
			logger.String("frameID", frame.FrameID),
			logger.Error(err),
		)
		return fmt.Errorf("failed to track frame %s: %w", frame.FrameID, err)
	}

	event, hold := tracker.Apply(frame, result)
	metrics.RecordFrameProcessed()

	switch event {
	case gate.EventAcquired:
		metrics.RecordGateTransition("acquired")
		w.logger.Info(ctx, "position acquired",
			logger.String("sessionID", frame.SessionID),
			logger.String("subjectID", frame.SubjectID),
		)
	case gate.EventLost:
		metrics.RecordGateTransition("lost")
	}

	if hold == nil {
		if w.onProcessed != nil {
			w.onProcessed()
		}
		return nil
	}

	// Hold completed: update the leaderboard, then persist history
	hold.View = w.view
	metrics.RecordHoldCompleted(hold.Seconds)
	w.logger.Info(ctx, "hold completed",
		logger.String("sessionID", hold.SessionID),
		logger.String("subjectID", hold.SubjectID),
		logger.Float64("seconds", hold.Seconds),
		logger.Int("frames", hold.Frames),
	)

	updated, err := w.updater.UpdateBest(ctx, hold.SubjectID, hold.Seconds)
	if err != nil {
		metrics.RecordLeaderboardError()
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "leaderboard_error")
		metrics.RecordErrorByType("leaderboard_error", "high")
		w.logger.Error(ctx, "leaderboard update failed for hold",
			logger.String("holdID", hold.ID),
			logger.Error(err),
		)
		return fmt.Errorf("leaderboard update failed: %w", err)
	}
	if updated {
		metrics.RecordLeaderboardUpdate()
	}

	if w.recorder != nil {
		if err := w.recorder.RecordHold(ctx, *hold); err != nil {
			metrics.RecordHistoryError()
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "history_error")
			metrics.RecordErrorByType("history_error", "medium")
			w.logger.Error(ctx, "history write failed for hold",
				logger.String("holdID", hold.ID),
				logger.Error(err),
			)
			return fmt.Errorf("history write failed: %w", err)
		}
		metrics.RecordHistoryWrite()
	}

	if w.onProcessed != nil {
		w.onProcessed()
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers    []*InMemoryWorker
	queue      Queue
	classifier Classifier
	sessions   Sessions
	updater    Updater
	recorder   Recorder

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Metrics tracking
	processedCount    atomic.Int64
	lastProcessedTime time.Time

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q Queue, classifier Classifier, sessions Sessions, updater Updater, recorder Recorder) *Pool {
	if workerCount < 1 {
		// Classification is CPU-bound; one worker per core
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:           make([]*InMemoryWorker, workerCount),
		queue:             q,
		classifier:        classifier,
		sessions:          sessions,
		updater:           updater,
		recorder:          recorder,
		shutdown:          make(chan struct{}),
		done:              make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			q,
			classifier,
			sessions,
			updater,
			recorder,
			WithName("worker-"+strconv.Itoa(i)),
			WithProcessedCallback(pool.RecordProcessedMessage),
		)
	}

	// Initialize worker metrics
	metrics.UpdateWorkerActiveCount(workerCount)
	metrics.UpdateWorkerIdleCount(0)
	metrics.UpdateWorkerMessagesPerSecond(0.0)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}

	// Start metrics updater
	go p.startMetricsUpdater(ctx)
}

// startMetricsUpdater starts a background goroutine that updates worker metrics.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

// updateMetrics updates worker-related metrics.
func (p *Pool) updateMetrics() {
	// Calculate frames per second since the last tick
	now := time.Now()
	timeDiff := now.Sub(p.lastProcessedTime).Seconds()
	if timeDiff > 0 {
		framesPerSecond := float64(p.processedCount.Swap(0)) / timeDiff
		metrics.UpdateWorkerMessagesPerSecond(framesPerSecond)
	}
	p.lastProcessedTime = now
}

// RecordProcessedMessage increments the processed frame count.
func (p *Pool) RecordProcessedMessage() {
	p.processedCount.Add(1)
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	// Signal shutdown to all workers
	close(p.shutdown)

	for _, worker := range p.workers {
		select {
		case <-worker.shutdown:
			// Already shut down individually
		default:
			close(worker.shutdown)
		}
	}

	// Wait for all workers to finish
	for _, worker := range p.workers {
		select {
		case <-worker.done:
			// Worker finished
		case <-time.After(workerShutdownTimeout):
			// Worker timeout
		}
	}
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	// First close the queue to stop new frames
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	// Signal shutdown to the metrics updater
	close(p.shutdown)

	// Wait for all workers to drain or context to timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	return nil
}
