// Package repository defines the ranking store interface and errors.
package repository

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/plank/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: best hold seconds DESC, then subjectID ASC (deterministic).
// We implement a BST comparator where "less" means ranks earlier
// (i.e., longer holds rank earlier). This makes in-order traversal
// produce the leaderboard from best to worst.

// secondsScale controls fixed-point scaling from float64.
const secondsScale = 1_000_000_000_000 // 12 decimal places for better precision

type secondsFP int64

func toFixedPoint(x float64) secondsFP {
	// Handle special cases
	if math.IsNaN(x) {
		return 0
	}
	if math.IsInf(x, 1) {
		return secondsFP(math.MaxInt64)
	}
	if math.IsInf(x, -1) {
		return secondsFP(math.MinInt64)
	}

	// For very large numbers, use a more conservative scaling
	if math.Abs(x) > 1e15 {
		// For extremely large numbers, use a smaller scale to avoid overflow
		scaled := x * (secondsScale / 1000000) // Use 1/1M of the scale
		if scaled > float64(math.MaxInt64) {
			return secondsFP(math.MaxInt64)
		}
		if scaled < float64(math.MinInt64) {
			return secondsFP(math.MinInt64)
		}
		return secondsFP(math.Round(scaled))
	}

	// Normal scaling for reasonable numbers
	scaled := x * secondsScale
	if scaled > float64(math.MaxInt64) {
		return secondsFP(math.MaxInt64)
	}
	if scaled < float64(math.MinInt64) {
		return secondsFP(math.MinInt64)
	}
	return secondsFP(math.Round(scaled))
}

func toFloat(x secondsFP) float64 {
	// Very large fixed-point values were scaled with the smaller factor;
	// reverse it with the same heuristic.
	if math.Abs(float64(x)) > 1e18 {
		return float64(x) / (secondsScale / 1000000)
	}
	return float64(x) / secondsScale
}

// Snapshot represents an immutable snapshot of the leaderboard state
type Snapshot struct {
	// Rank and best hold in O(1) for reads
	RankBySubject    map[string]int
	SecondsBySubject map[string]float64

	// Fast Top-K cache up to M items
	TopCache []Entry // sorted descending (M ≪ N_total)
}

// treap node
type node struct {
	id    string
	secs  secondsFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aSecs, aID) should appear before (bSecs, bID)
// in the leaderboard (longer holds first).
func less(aSecs secondsFP, aID string, bSecs secondsFP, bID string) bool {
	if aSecs != bSecs {
		return aSecs > bSecs // longer hold ranks earlier
	}
	return aID < bID // tie-breaker by id asc
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, secs secondsFP) *node {
	if n == nil {
		// Random priorities keep the tree balanced in expectation
		// regardless of insertion order.
		return &node{id: id, secs: secs, prio: rand.Uint64(), size: 1}
	}
	if less(secs, id, n.secs, n.id) {
		n.left = insert(n.left, id, secs)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, secs)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, secs secondsFP) *node {
	if n == nil {
		return nil
	}
	if secs == n.secs && id == n.id {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, secs)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, secs)
		}
	} else if less(secs, id, n.secs, n.id) {
		n.left = deleteNode(n.left, id, secs)
	} else {
		n.right = deleteNode(n.right, id, secs)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order (longest holds first).
func collectTopN(n *node, limit int, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}

	// In-order traversal: the BST ordering already encodes duration
	// descending with deterministic subject ID tie-breaking.
	collectTopN(n.left, limit, out)

	if len(*out) < limit {
		*out = append(*out, Entry{Rank: 0 /* fix later */, SubjectID: n.id, Seconds: toFloat(n.secs)})
	}

	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

type TreapStore struct {
	mu                    sync.RWMutex
	root                  *node
	byID                  map[string]secondsFP
	snapshotInterval      time.Duration // How often to publish periodic snapshots of the store
	topCacheSize          int           // Maximum number of top entries to keep in the snapshot cache
	metricsUpdateInterval time.Duration // How often to refresh gauge metrics

	// snapshot is atomic pointer to a Snapshot struct
	snapshot atomic.Pointer[Snapshot]

	// Periodic snapshot management
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		snapshotInterval:      2 * time.Second, // default snapshot interval
		topCacheSize:          1000,            // default top cache size
		metricsUpdateInterval: 5 * time.Second, // default metrics refresh
		byID:                  make(map[string]secondsFP),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	// Initialize stop channel and start periodic snapshot goroutine
	s.stopChan = make(chan struct{})
	s.startPeriodicSnapshots(ctx)

	// Initialize metrics
	metrics.UpdateRepositoryRecordsTotal(0)
	s.startMetricsUpdater(ctx)

	return s
}

// startPeriodicSnapshots starts a background goroutine that publishes snapshots at the configured interval
func (s *TreapStore) startPeriodicSnapshots(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.publishSnapshot()
			}
		}
	}()
}

// publishSnapshot rebuilds and publishes a new snapshot
func (s *TreapStore) publishSnapshot() {
	start := time.Now()
	s.mu.RLock()
	s.publishSnapshotInternal()
	s.mu.RUnlock()

	ms := float64(time.Since(start).Milliseconds())
	metrics.RecordRepositorySnapshotRebuildDuration(ms)
	metrics.UpdateRepositorySnapshotLastDurationMs(ms)
	metrics.UpdateRepositorySnapshotLastUnix(float64(time.Now().Unix()))
	metrics.IncrementRepositorySnapshotCount()
}

// Close gracefully shuts down the periodic snapshot goroutine
func (s *TreapStore) Close() error {
	// Signal all goroutines to stop
	select {
	case <-s.stopChan:
		// Channel already closed
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// UpdateBest implements Store.UpdateBest with O(log n) expected time.
func (s *TreapStore) UpdateBest(ctx context.Context, subjectID string, seconds float64) (bool, error) {
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordRepositoryUpdateLatency(float64(latency))
	}()

	ns := toFixedPoint(seconds)

	// Track if this is a new subject so we can update metrics after releasing locks
	isNewSubject := false

	s.mu.Lock()
	if old, ok := s.byID[subjectID]; ok {
		if ns <= old { // not an improvement
			s.mu.Unlock()
			return false, nil
		}
		s.root = deleteNode(s.root, subjectID, old)
	} else {
		isNewSubject = true
	}
	s.byID[subjectID] = ns
	s.root = insert(s.root, subjectID, ns)
	s.mu.Unlock()

	// Update metrics outside lock
	if isNewSubject {
		metrics.UpdateRepositoryRecordsTotal(s.Count(ctx))
	}

	// Snapshots are published periodically, not after every update
	return true, nil
}

// Rank returns the current rank and best hold for a subject.
func (s *TreapStore) Rank(ctx context.Context, subjectID string) (Entry, error) {
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordRepositoryQueryLatency(float64(latency))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Check if the subject exists
	if _, ok := s.byID[subjectID]; !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}

	// Collect all entries and find the rank
	allEntries := make([]Entry, 0, len(s.byID))
	collectAll(s.root, &allEntries)

	// Sort all entries by duration (descending) and subjectID (ascending) to match TopN logic
	sortEntries(allEntries)

	// Assign global ranks with proper tie handling
	assignRanksWithTies(allEntries)

	// Find the rank for this specific subject
	for _, entry := range allEntries {
		if entry.SubjectID == subjectID {
			return entry, nil
		}
	}

	return Entry{}, ErrNotFound
}

// TopN returns the top N entries ordered by best hold desc.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordRepositoryQueryLatency(float64(latency))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, n)
	collectTopN(s.root, n, &out)

	// Assign ranks with proper tie handling
	assignRanksWithTies(out)
	return out, nil
}

// Count returns the total number of subjects.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Snapshot returns the most recently published snapshot, or nil when none
// has been published yet. Readers must treat it as immutable.
func (s *TreapStore) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// publishSnapshotInternal rebuilds and publishes a new snapshot (assumes lock is held)
func (s *TreapStore) publishSnapshotInternal() {
	// Build Top-M cache for fast dashboard queries
	topCache := make([]Entry, 0, s.topCacheSize)
	collectTopN(s.root, s.topCacheSize, &topCache)

	// Build full rank and duration maps
	rankBySubject := make(map[string]int, len(s.byID))
	secondsBySubject := make(map[string]float64, len(s.byID))

	// Collect all entries to compute global ranks
	allEntries := make([]Entry, 0, len(s.byID))
	collectAll(s.root, &allEntries)

	// Assign ranks with proper tie handling
	assignRanksWithTies(allEntries)

	// Build maps from all entries
	for _, entry := range allEntries {
		rankBySubject[entry.SubjectID] = entry.Rank
		secondsBySubject[entry.SubjectID] = entry.Seconds
	}

	// Update TopCache with correct ranks
	for i := range topCache {
		if rank, exists := rankBySubject[topCache[i].SubjectID]; exists {
			topCache[i].Rank = rank
		}
	}

	snapshot := &Snapshot{
		RankBySubject:    rankBySubject,
		SecondsBySubject: secondsBySubject,
		TopCache:         topCache,
	}

	s.snapshot.Store(snapshot)
}

// startMetricsUpdater starts a background goroutine that updates repository metrics
func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

// updateMetrics refreshes the leaderboard gauge metrics.
func (s *TreapStore) updateMetrics() {
	s.mu.RLock()
	subjectCount := len(s.byID)
	s.mu.RUnlock()

	metrics.UpdateRepositoryRecordsTotal(subjectCount)
}

// collectAll appends all entries in rank order (longest holds first).
func collectAll(n *node, out *[]Entry) {
	if n == nil {
		return
	}
	// Traverse left subtree first (longer holds)
	collectAll(n.left, out)
	// Add current node
	*out = append(*out, Entry{
		SubjectID: n.id,
		Seconds:   toFloat(n.secs),
	})
	// Traverse right subtree (shorter holds)
	collectAll(n.right, out)
}

// sortEntries sorts entries by duration (descending) and subjectID (ascending) to match TopN logic
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		// Longer hold comes first (descending order)
		if entries[i].Seconds != entries[j].Seconds {
			return entries[i].Seconds > entries[j].Seconds
		}
		// Tie-breaker: subjectID in ascending order
		return entries[i].SubjectID < entries[j].SubjectID
	})
}

// assignRanksWithTies assigns ranks with proper tie handling.
// Subjects with the same best hold get the same rank, and the next
// distinct duration takes the next consecutive rank.
func assignRanksWithTies(entries []Entry) {
	if len(entries) == 0 {
		return
	}

	currentRank := 1
	for i := 0; i < len(entries); i++ {
		// Assign current rank to this entry
		entries[i].Rank = currentRank

		// Count how many entries have the same duration as this one
		sameScoreCount := 1
		for j := i + 1; j < len(entries) && entries[j].Seconds == entries[i].Seconds; j++ {
			entries[j].Rank = currentRank
			sameScoreCount++
		}

		// Move to the next rank (consecutive ranking)
		currentRank++
		i += sameScoreCount - 1 // Skip the entries we just processed
	}
}
