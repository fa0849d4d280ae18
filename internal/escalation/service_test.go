package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"civicfix_backend/internal/events"
	"civicfix_backend/internal/reports/domain"
	"civicfix_backend/internal/reports/reportstest"
	"civicfix_backend/platform/logger"

	"github.com/google/uuid"
)

func newTestService(t *testing.T, store *reportstest.Store) *Service {
	t.Helper()
	svc := NewService(store, mustEngine(t, DefaultParams()), nil, logger.Discard())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func countStatus(t *testing.T, store *reportstest.Store, status domain.Status) int {
	t.Helper()
	list, err := store.ListByStatus(context.Background(), status)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return len(list)
}

func TestRunPassFlagsWholeClusterAtOnce(t *testing.T) {
	a, b, c, d := northOf("pothole", 0), northOf("pothole", 100), northOf("pothole", -480), northOf("pothole", -600)
	store := reportstest.New(a, b, c, d)

	hookCalls := 0
	store.OnMarkReady = func(ids []uuid.UUID) {
		hookCalls++
		// mid-update readers see the pre-batch state only
		if n := countStatus(t, store, domain.StatusReady); n != 0 {
			t.Errorf("observed %d ready reports mid-batch", n)
		}
		if len(ids) != 3 {
			t.Errorf("expected one batch of 3 ids, got %d", len(ids))
		}
	}

	result, err := newTestService(t, store).RunPass(context.Background())
	if err != nil {
		t.Fatalf("run pass: %v", err)
	}
	if hookCalls != 1 {
		t.Fatalf("expected a single batch update, got %d", hookCalls)
	}
	if !result.Escalated() || result.MarkedReady != 3 || result.Scanned != 4 {
		t.Fatalf("unexpected result %+v", result)
	}

	for _, id := range []uuid.UUID{a.ID, b.ID, c.ID} {
		r := store.Get(id)
		if r.Status != domain.StatusReady || r.ReadyAt == nil || r.SubmittedAt != nil {
			t.Fatalf("report %s not flagged ready correctly: %+v", id, r)
		}
	}
	if store.Get(d.ID).Status != domain.StatusUnsubmitted {
		t.Fatal("D must remain unsubmitted")
	}
}

func TestRunPassIgnoresNonUnsubmittedReports(t *testing.T) {
	a, b := northOf("pothole", 0), northOf("pothole", 100)
	done := northOf("pothole", 50)
	done.Status = domain.StatusSubmitted
	store := reportstest.New(a, b, done)

	result, err := newTestService(t, store).RunPass(context.Background())
	if err != nil {
		t.Fatalf("run pass: %v", err)
	}
	if result.Escalated() {
		t.Fatal("submitted reports must not count toward a cluster")
	}
	if store.Calls.MarkReady != 0 {
		t.Fatal("no batch expected when nothing qualifies")
	}
}

func TestRunPassRetriesStaleBatch(t *testing.T) {
	store := reportstest.New(northOf("sewer", 0), northOf("sewer", 10), northOf("sewer", 20))
	first := true
	store.OnMarkReady = func([]uuid.UUID) {
		if first {
			first = false
			store.Put(unlocated("other"))
		}
	}

	result, err := newTestService(t, store).RunPass(context.Background())
	if err != nil {
		t.Fatalf("run pass: %v", err)
	}
	if store.Calls.MarkReady != 2 {
		t.Fatalf("expected the pass to retry once, got %d batches", store.Calls.MarkReady)
	}
	if result.MarkedReady != 3 || result.Scanned != 4 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunPassPropagatesStoreErrors(t *testing.T) {
	store := reportstest.New(northOf("sewer", 0), northOf("sewer", 10), northOf("sewer", 20))
	boom := errors.New("db down")
	store.MarkReadyErr = boom

	if _, err := newTestService(t, store).RunPass(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if countStatus(t, store, domain.StatusReady) != 0 {
		t.Fatal("failed batch must not flag anything")
	}
}

func TestRunPassPublishesEvent(t *testing.T) {
	store := reportstest.New(northOf("sewer", 0), northOf("sewer", 10), northOf("sewer", 20))
	bus := events.NewInMemoryBus(logger.Discard())
	got := make(chan events.ClustersMarkedReady, 1)
	bus.Subscribe(events.ClustersMarkedReady{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		got <- e.(events.ClustersMarkedReady)
		return nil
	}))

	svc := NewService(store, mustEngine(t, DefaultParams()), bus, logger.Discard())
	if _, err := svc.RunPass(context.Background()); err != nil {
		t.Fatalf("run pass: %v", err)
	}
	bus.Wait()

	select {
	case e := <-got:
		if e.Clusters != 1 || len(e.ReportIDs) != 3 {
			t.Fatalf("unexpected event %+v", e)
		}
	default:
		t.Fatal("expected ClustersMarkedReady to be published")
	}
}

type recordingQueue struct {
	reasons []string
}

func (q *recordingQueue) EnqueueClusterPass(_ context.Context, reason string) error {
	q.reasons = append(q.reasons, reason)
	return nil
}

func TestPassTrigger(t *testing.T) {
	store := reportstest.New(northOf("sewer", 0), northOf("sewer", 10), northOf("sewer", 20))
	svc := newTestService(t, store)
	id := uuid.New()

	queue := &recordingQueue{}
	res, err := NewPassTrigger(svc, queue, nil).ReportCreated(context.Background(), id, true)
	if err != nil || !res.Queued || res.Ran {
		t.Fatalf("expected queued pass, got %+v err=%v", res, err)
	}
	if len(queue.reasons) != 1 || queue.reasons[0] != "report:"+id.String() {
		t.Fatalf("unexpected enqueue %v", queue.reasons)
	}

	res, err = NewPassTrigger(svc, queue, nil).ReportCreated(context.Background(), id, false)
	if err != nil || res.Queued || res.Ran {
		t.Fatalf("unlocated report should not trigger, got %+v", res)
	}

	res, err = NewPassTrigger(svc, nil, nil).ReportCreated(context.Background(), id, true)
	if err != nil || !res.Ran || !res.Escalated {
		t.Fatalf("expected inline escalation, got %+v err=%v", res, err)
	}
}
