package table

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docgrid/docgrid/internal/extraction"
)

const (
	// interRequestDelay keeps sequential extraction calls under the remote
	// service's request-rate ceiling. It applies between items regardless
	// of their outcome and is skipped after the final one.
	interRequestDelay = 5 * time.Second
	// statusResetDelay is how long a terminal batch status stays visible
	// before the orchestrator returns to idle.
	statusResetDelay = 4 * time.Second
)

// IDGenerator generates unique IDs for rows.
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Document is one uploaded file queued for extraction.
type Document struct {
	Name        string
	Data        []byte
	ContentType string
}

// BatchResult summarizes one orchestrator run.
type BatchResult struct {
	Rows   []*Row   `json:"rows"`
	Failed []string `json:"failed,omitempty"`
	Total  int      `json:"total"`
}

// Summary renders the user-facing completion message, e.g.
// "2 of 3 processed (1 failed)".
func (r BatchResult) Summary() string {
	msg := fmt.Sprintf("%d of %d processed", len(r.Rows), r.Total)
	if len(r.Failed) > 0 {
		msg += fmt.Sprintf(" (%d failed)", len(r.Failed))
	}
	return msg
}

// Orchestrator processes batches of documents sequentially against the
// extraction client, appending successful rows to the store and publishing
// status transitions. Calls never overlap, even across concurrent uploads;
// serialization is a rate-limit policy, not an accident.
type Orchestrator struct {
	extractor  extraction.Extractor
	store      *Store
	columns    Columns
	idGen      IDGenerator
	timeSource TimeSource
	sleep      func(time.Duration)
	after      func(time.Duration, func())

	// runMu serializes whole batches: a second upload waits for the
	// in-flight batch instead of interleaving extraction calls
	runMu sync.Mutex

	mu        sync.Mutex
	status    Status
	statusGen uint64
}

// NewOrchestrator creates an Orchestrator with default ID generation, time
// source and timers.
func NewOrchestrator(extractor extraction.Extractor, store *Store, columns Columns) *Orchestrator {
	return NewOrchestratorWithDeps(extractor, store, columns,
		&defaultIDGenerator{},
		&defaultTimeSource{},
		time.Sleep,
		func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	)
}

// NewOrchestratorWithDeps creates an Orchestrator with custom dependencies
// for testing.
func NewOrchestratorWithDeps(
	extractor extraction.Extractor,
	store *Store,
	columns Columns,
	idGen IDGenerator,
	timeSource TimeSource,
	sleep func(time.Duration),
	after func(time.Duration, func()),
) *Orchestrator {
	return &Orchestrator{
		extractor:  extractor,
		store:      store,
		columns:    columns,
		idGen:      idGen,
		timeSource: timeSource,
		sleep:      sleep,
		after:      after,
		status:     Status{State: StateIdle},
	}
}

// Columns returns the fixed column set rows conform to.
func (o *Orchestrator) Columns() Columns {
	return o.columns
}

// Status returns the current batch status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Process runs one batch to completion. A failed document never aborts the
// batch: its filename is recorded and processing continues, so one bad image
// cannot block the rest. Rows are appended in submission order. Concurrent
// calls run one after the other.
func (o *Orchestrator) Process(docs []Document) BatchResult {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	res := BatchResult{Total: len(docs)}
	if len(docs) == 0 {
		return res
	}

	for i, doc := range docs {
		o.setStatus(Status{
			State:   StateProcessing,
			Message: fmt.Sprintf("Processing %d of %d: %s", i+1, len(docs), doc.Name),
		})

		rec, err := o.extractor.Extract(doc.Data, doc.ContentType, o.columns)
		if err != nil {
			slog.Error("Failed to extract document",
				"filename", doc.Name,
				"content_type", doc.ContentType,
				"file_size", len(doc.Data),
				"error", err,
			)
			res.Failed = append(res.Failed, doc.Name)
		} else {
			row := &Row{
				ID:          o.idGen.Generate(),
				Data:        rec,
				SourceName:  doc.Name,
				ContentType: doc.ContentType,
				CreatedAt:   o.timeSource.Now(),
			}
			o.store.Append(row, doc.Data, doc.ContentType)
			res.Rows = append(res.Rows, row)
		}

		if i < len(docs)-1 {
			o.sleep(interRequestDelay)
		}
	}

	if len(res.Rows) > 0 {
		o.setStatus(Status{State: StateSuccess, Message: res.Summary()})
	} else {
		o.setStatus(Status{State: StateError, Message: "no documents could be processed"})
	}
	o.scheduleIdle()

	return res
}

func (o *Orchestrator) setStatus(s Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = s
	o.statusGen++
}

// scheduleIdle arms the timed return to idle. The generation check keeps a
// stale timer from clobbering the status of a batch started in the meantime.
func (o *Orchestrator) scheduleIdle() {
	o.mu.Lock()
	gen := o.statusGen
	o.mu.Unlock()

	o.after(statusResetDelay, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.statusGen == gen {
			o.status = Status{State: StateIdle}
			o.statusGen++
		}
	})
}
