package table

import (
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/docgrid/docgrid/internal/extraction"
)

// mockExtractor is a mock implementation of extraction.Extractor
type mockExtractor struct {
	failNames map[string]error
	record    extraction.Record
	calls     []string
}

func newMockExtractor() *mockExtractor {
	return &mockExtractor{
		failNames: make(map[string]error),
		record:    extraction.Record{"merchant": "CVS", "amount": 25.99},
	}
}

func (m *mockExtractor) Extract(imageData []byte, contentType string, columns []string) (extraction.Record, error) {
	name := string(imageData)
	m.calls = append(m.calls, name)
	if err, ok := m.failNames[name]; ok {
		return nil, err
	}
	return m.record, nil
}

func (m *mockExtractor) Close() error {
	return nil
}

// trackingExtractor counts how many Extract calls are in flight at once
type trackingExtractor struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
}

func (t *trackingExtractor) Extract(imageData []byte, contentType string, columns []string) (extraction.Record, error) {
	t.mu.Lock()
	t.inFlight++
	if t.inFlight > t.maxInFlight {
		t.maxInFlight = t.inFlight
	}
	t.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	t.mu.Lock()
	t.inFlight--
	t.mu.Unlock()
	return extraction.Record{"merchant": "CVS"}, nil
}

func (t *trackingExtractor) Close() error {
	return nil
}

// mockIDGenerator returns sequential IDs
type mockIDGenerator struct {
	n int
}

func (m *mockIDGenerator) Generate() string {
	m.n++
	return fmt.Sprintf("id-%d", m.n)
}

// mockTimeSource is a mock implementation of TimeSource
type mockTimeSource struct {
	now time.Time
}

func (m *mockTimeSource) Now() time.Time {
	return m.now
}

var _ = Describe("Orchestrator", func() {
	var (
		extractor *mockExtractor
		store     *Store
		slept     []time.Duration
		pending   []func()
		orch      *Orchestrator
	)

	doc := func(name string) Document {
		// The mock keys failures off the payload, so use the name as data
		return Document{Name: name, Data: []byte(name), ContentType: "image/jpeg"}
	}

	fireTimers := func() {
		for _, fn := range pending {
			fn()
		}
		pending = nil
	}

	BeforeEach(func() {
		extractor = newMockExtractor()
		store = NewStore()
		slept = nil
		pending = nil
		orch = NewOrchestratorWithDeps(
			extractor,
			store,
			Columns{"date", "merchant", "amount"},
			&mockIDGenerator{},
			&mockTimeSource{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)},
			func(d time.Duration) { slept = append(slept, d) },
			func(d time.Duration, fn func()) { pending = append(pending, fn) },
		)
	})

	Describe("Process", func() {
		When("the batch is empty", func() {
			It("does nothing and stays idle", func() {
				res := orch.Process(nil)
				Expect(res.Total).To(Equal(0))
				Expect(orch.Status().State).To(Equal(StateIdle))
				Expect(slept).To(BeEmpty())
			})
		})

		When("every document succeeds", func() {
			var res BatchResult

			JustBeforeEach(func() {
				res = orch.Process([]Document{doc("a.jpg"), doc("b.jpg"), doc("c.jpg")})
			})

			It("appends one row per document in submission order", func() {
				rows := store.Rows()
				Expect(rows).To(HaveLen(3))
				Expect(rows[0].SourceName).To(Equal("a.jpg"))
				Expect(rows[1].SourceName).To(Equal("b.jpg"))
				Expect(rows[2].SourceName).To(Equal("c.jpg"))
			})

			It("extracts strictly one at a time in order", func() {
				Expect(extractor.calls).To(Equal([]string{"a.jpg", "b.jpg", "c.jpg"}))
			})

			It("pauses between documents but not after the last", func() {
				Expect(slept).To(Equal([]time.Duration{5 * time.Second, 5 * time.Second}))
			})

			It("reports full success", func() {
				Expect(res.Summary()).To(Equal("3 of 3 processed"))
				Expect(orch.Status()).To(Equal(Status{State: StateSuccess, Message: "3 of 3 processed"}))
			})

			It("stamps rows with injected IDs and time", func() {
				rows := store.Rows()
				Expect(rows[0].ID).To(Equal("id-1"))
				Expect(rows[0].CreatedAt).To(Equal(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)))
			})

			It("returns to idle after the display delay", func() {
				Expect(pending).To(HaveLen(1))
				fireTimers()
				Expect(orch.Status()).To(Equal(Status{State: StateIdle}))
			})
		})

		When("one document fails", func() {
			var res BatchResult

			BeforeEach(func() {
				extractor.failNames["b.jpg"] = fmt.Errorf("%w: gibberish", extraction.ErrInvalidResponse)
			})

			JustBeforeEach(func() {
				res = orch.Process([]Document{doc("a.jpg"), doc("b.jpg"), doc("c.jpg")})
			})

			It("does not abort the batch", func() {
				Expect(extractor.calls).To(HaveLen(3))
			})

			It("keeps the surviving rows in submission order", func() {
				rows := store.Rows()
				Expect(rows).To(HaveLen(2))
				Expect(rows[0].SourceName).To(Equal("a.jpg"))
				Expect(rows[1].SourceName).To(Equal("c.jpg"))
			})

			It("records the failed filename", func() {
				Expect(res.Failed).To(Equal([]string{"b.jpg"}))
			})

			It("still pauses after the failed document", func() {
				Expect(slept).To(Equal([]time.Duration{5 * time.Second, 5 * time.Second}))
			})

			It("summarizes the partial failure", func() {
				Expect(res.Summary()).To(Equal("2 of 3 processed (1 failed)"))
				Expect(orch.Status().State).To(Equal(StateSuccess))
				Expect(orch.Status().Message).To(Equal("2 of 3 processed (1 failed)"))
			})
		})

		When("rate limiting exhausts retries for some documents", func() {
			BeforeEach(func() {
				rateLimited := errors.New("rate limited after 6 attempts: 429 quota exceeded")
				extractor.failNames["a.jpg"] = rateLimited
				extractor.failNames["d.jpg"] = rateLimited
			})

			It("still produces rows for everything else", func() {
				res := orch.Process([]Document{doc("a.jpg"), doc("b.jpg"), doc("c.jpg"), doc("d.jpg"), doc("e.jpg")})
				Expect(store.Len()).To(Equal(3))
				Expect(res.Failed).To(ConsistOf("a.jpg", "d.jpg"))
				Expect(res.Summary()).To(Equal("3 of 5 processed (2 failed)"))
			})
		})

		When("every document fails", func() {
			BeforeEach(func() {
				extractor.failNames["a.jpg"] = errors.New("boom")
				extractor.failNames["b.jpg"] = errors.New("boom")
			})

			It("transitions to the error state", func() {
				res := orch.Process([]Document{doc("a.jpg"), doc("b.jpg")})
				Expect(res.Rows).To(BeEmpty())
				Expect(orch.Status().State).To(Equal(StateError))
			})

			It("still schedules the return to idle", func() {
				orch.Process([]Document{doc("a.jpg"), doc("b.jpg")})
				fireTimers()
				Expect(orch.Status()).To(Equal(Status{State: StateIdle}))
			})
		})

		When("two batches are submitted concurrently", func() {
			It("never overlaps extraction calls", func() {
				tracker := &trackingExtractor{}
				orch := NewOrchestratorWithDeps(
					tracker,
					store,
					Columns{"date", "merchant", "amount"},
					&mockIDGenerator{},
					&mockTimeSource{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)},
					func(time.Duration) { time.Sleep(time.Millisecond) },
					func(time.Duration, func()) {},
				)

				var wg sync.WaitGroup
				for range 2 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						orch.Process([]Document{doc("a.jpg"), doc("b.jpg")})
					}()
				}
				wg.Wait()

				Expect(tracker.maxInFlight).To(Equal(1))
				Expect(store.Len()).To(Equal(4))
			})
		})

		When("a new batch starts before the old status timer fires", func() {
			It("does not let the stale timer clobber the new status", func() {
				orch.Process([]Document{doc("a.jpg")})
				stale := pending
				pending = nil

				orch.Process([]Document{doc("b.jpg")})
				for _, fn := range stale {
					fn()
				}
				Expect(orch.Status().State).To(Equal(StateSuccess))
			})
		})

		It("publishes a progress message before each document", func() {
			var messages []string
			// Capture status at sleep points, i.e. while the batch is mid-flight
			orch.sleep = func(time.Duration) {
				messages = append(messages, orch.Status().Message)
			}
			orch.Process([]Document{doc("a.jpg"), doc("b.jpg")})
			Expect(messages).To(Equal([]string{"Processing 1 of 2: a.jpg"}))
		})
	})
})
