// Package session holds the state of one pricing run: the per-item results,
// the cooperative stop flag and the snapshot saves into the output workbook.
package session

import (
	"context"
	"log"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mspro-labs/tender-pricer/internal/models"
	"mspro-labs/tender-pricer/internal/tender"
)

var logger = log.New(os.Stdout, "SESSION: ", log.LstdFlags|log.Lshortfile)

// ReconcileFunc writes a snapshot of entries into a copy of the original
// workbook. tender.Reconcile is the production implementation.
type ReconcileFunc func(original, output string, entries []tender.Entry, opts tender.Options) (*tender.Report, error)

// Session is the context object owned by a run loop. Signal handlers and
// observers get a reference to it; they never keep their own copy of state.
type Session struct {
	ID        string
	Input     string
	Output    string
	Options   tender.Options
	StartedAt time.Time

	reconcile ReconcileFunc

	mu    sync.RWMutex
	items []models.ItemResult
	saves int

	stopped atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	flushMu sync.Mutex
}

// New creates a session writing snapshots of input into output. An empty
// output disables snapshots.
func New(ctx context.Context, input, output string, opts tender.Options) *Session {
	ctx, cancel := context.WithCancel(ctx)
	return &Session{
		ID:        uuid.NewString(),
		Input:     input,
		Output:    output,
		Options:   opts,
		StartedAt: time.Now(),
		reconcile: tender.Reconcile,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// WithReconciler swaps the snapshot writer. Used by tests and by dry runs.
func (s *Session) WithReconciler(fn ReconcileFunc) *Session {
	s.reconcile = fn
	return s
}

// Context is cancelled once Stop is called.
func (s *Session) Context() context.Context { return s.ctx }

// Add appends a pending item and returns its ordinal.
func (s *Session) Add(rec models.ProductRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.items)
	s.items = append(s.items, models.ItemResult{
		Index:  idx,
		Name:   rec.Name,
		Raw:    rec.Raw,
		Status: models.StatusPending,
	})
	return idx
}

// Restore loads previously recorded items, replacing the current ones.
func (s *Session) Restore(items []models.ItemResult) {
	cp := make([]models.ItemResult, len(items))
	copy(cp, items)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Index < cp[j].Index })

	s.mu.Lock()
	s.items = cp
	s.mu.Unlock()
}

// Update applies fn to the item at idx and returns the updated copy.
func (s *Session) Update(idx int, fn func(*models.ItemResult)) (models.ItemResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.items) {
		return models.ItemResult{}, false
	}
	fn(&s.items[idx])
	return s.items[idx], true
}

// Item returns a copy of one item.
func (s *Session) Item(idx int) (models.ItemResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx < 0 || idx >= len(s.items) {
		return models.ItemResult{}, false
	}
	return s.items[idx], true
}

// Snapshot returns a copy of all items in ordinal order.
func (s *Session) Snapshot() []models.ItemResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ItemResult, len(s.items))
	copy(out, s.items)
	return out
}

// Summary counts items by status.
type Summary struct {
	Total     int
	Processed int
	Success   int
	Errors    int
	NotFound  int
	Pending   int
	Saves     int

	// Items with a regular / business price found.
	Regular  int
	Business int
}

// Summary computes the current counts.
func (s *Session) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{Total: len(s.items), Saves: s.saves}
	for _, it := range s.items {
		switch it.Status {
		case models.StatusSuccess:
			sum.Success++
		case models.StatusError:
			sum.Errors++
		case models.StatusNotFound:
			sum.NotFound++
		default:
			sum.Pending++
		}
		if it.Result.Regular.IsFound() {
			sum.Regular++
		}
		if it.Result.Business.IsFound() {
			sum.Business++
		}
	}
	sum.Processed = sum.Success + sum.Errors + sum.NotFound
	return sum
}

// Stop requests cancellation. The run loop finishes its current step.
func (s *Session) Stop() {
	if s.stopped.CompareAndSwap(false, true) {
		logger.Println("Stop requested")
		s.cancel()
	}
}

// Stopped reports whether Stop has been called.
func (s *Session) Stopped() bool { return s.stopped.Load() }

// Entries converts the current snapshot into writer input.
func (s *Session) Entries() []tender.Entry {
	items := s.Snapshot()
	entries := make([]tender.Entry, len(items))
	for i, it := range items {
		entries[i] = tender.Entry{Name: it.Name, Result: it.Result}
	}
	return entries
}

// Flush rewrites the output workbook from the current snapshot. A failed
// save is logged and reported as false; the previous output stays on disk.
func (s *Session) Flush() bool {
	if s.Output == "" {
		return false
	}
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	rep, err := s.reconcile(s.Input, s.Output, s.Entries(), s.Options)
	if err != nil {
		logger.Printf("Snapshot save failed: %v", err)
		return false
	}

	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	if rep != nil {
		logger.Printf("Snapshot saved to %s (%d items filled)", s.Output, rep.Filled)
	}
	return true
}
