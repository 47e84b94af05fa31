package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mspro-labs/tender-pricer/internal/models"
	"mspro-labs/tender-pricer/internal/names"
)

// Lookup finds marketplace prices for one cleaned product name.
type Lookup interface {
	Lookup(ctx context.Context, name string) (models.PriceResult, error)
}

// Runner drives a single lookup worker over the session's items, one product
// at a time, reporting progress on Events.
type Runner struct {
	Session *Session
	Lookup  Lookup
	Events  chan<- Event

	// AutoSaveEvery flushes a snapshot after every N processed items. Zero
	// disables periodic saves; the final save always runs.
	AutoSaveEvery int

	// Record, when set, persists each finished item.
	Record func(models.ItemResult) error
}

// Run adds records to the session and prices them in order. It closes Events
// when done, after the final snapshot save.
func (r *Runner) Run(records []models.ProductRecord) Summary {
	for _, rec := range records {
		idx := r.Session.Add(rec)
		it, _ := r.Session.Item(idx)
		r.emit(Event{Kind: EventRowAdded, Item: it})
	}
	r.logf("Processing %d products", len(records))
	return r.Resume()
}

// Resume prices the session items that are not done yet, then saves a final
// snapshot and closes Events.
func (r *Runner) Resume() Summary {
	s := r.Session
	defer close(r.Events)

	r.process(s.Snapshot())

	ok := s.Flush()
	sum := s.Summary()
	r.emit(Event{Kind: EventAutoSave, OK: ok, Message: "final save"})
	r.emit(Event{Kind: EventFinished, Message: fmt.Sprintf(
		"processed %d/%d: %d found, %d not found, %d errors",
		sum.Processed, sum.Total, sum.Success, sum.NotFound, sum.Errors)})
	return sum
}

func (r *Runner) process(items []models.ItemResult) {
	s := r.Session
	processed := 0

	for _, it := range items {
		if it.Status.Done() {
			continue
		}
		if s.Stopped() {
			r.logf("Stopped before item %d", it.Index+1)
			return
		}

		it, _ = s.Update(it.Index, func(i *models.ItemResult) { i.Status = models.StatusProcessing })
		r.emit(Event{Kind: EventRowUpdated, Item: it})

		res, err := r.Lookup.Lookup(s.Context(), it.Name)
		if err != nil && s.Stopped() && errors.Is(err, context.Canceled) {
			it, _ = s.Update(it.Index, func(i *models.ItemResult) { i.Status = models.StatusPending })
			r.emit(Event{Kind: EventRowUpdated, Item: it})
			r.logf("Stopped during item %d", it.Index+1)
			return
		}
		it, _ = s.Update(it.Index, func(i *models.ItemResult) {
			if err != nil {
				i.Result = models.PriceResult{Regular: models.Failed(err.Error()), Business: models.Failed(err.Error())}
				i.Status = models.StatusError
				i.Error = err.Error()
				return
			}
			i.Result = res
			i.Status = models.StatusOf(res)
			i.Error = ""
		})
		if err != nil {
			r.logf("Item %d %q failed: %v", it.Index+1, names.Truncate(it.Name, 40), err)
		}
		r.emit(Event{Kind: EventRowUpdated, Item: it})

		if r.Record != nil {
			if err := r.Record(it); err != nil {
				r.logf("Item %d %q not recorded: %v", it.Index+1, names.Truncate(it.Name, 40), err)
			}
		}

		processed++
		if r.AutoSaveEvery > 0 && processed%r.AutoSaveEvery == 0 && !s.Stopped() {
			ok := s.Flush()
			r.emit(Event{Kind: EventAutoSave, OK: ok, Message: fmt.Sprintf("after %d items", processed)})
		}
	}
}

func (r *Runner) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.Output(2, msg)
	r.emit(Event{Kind: EventLog, Message: msg})
}

func (r *Runner) emit(ev Event) {
	ev.Time = time.Now()
	r.Events <- ev
}
