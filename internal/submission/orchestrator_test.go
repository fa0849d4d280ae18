package submission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"civicfix_backend/internal/reports/domain"
	"civicfix_backend/internal/reports/reportstest"
	"civicfix_backend/platform/logger"
	"civicfix_backend/platform/redislock"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type orchestratorFixture struct {
	store    *reportstest.Store
	session  *fakeSession
	opener   *fakeOpener
	clock    *fakeClock
	recorder *fakeRecorder
	orch     *Orchestrator
}

func newOrchestratorFixture(t *testing.T, reports ...domain.Report) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		store:    reportstest.New(reports...),
		session:  newFakeSession(),
		clock:    newFakeClock(),
		recorder: &fakeRecorder{},
	}
	f.opener = &fakeOpener{session: f.session}
	driver := newTestDriver(f.store, nil, f.clock)
	f.orch = NewOrchestrator(f.store, driver, f.opener, DefaultRunOptions(), logger.Discard(),
		WithClock(f.clock), WithRecorder(f.recorder))
	return f
}

func TestRunRetryCap(t *testing.T) {
	r := readyReport(0)
	f := newOrchestratorFixture(t, r)
	f.session.failFill[FieldMobile] = errors.New("element not found")

	stats, err := f.orch.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.session.resets != DefaultMaxRetries {
		t.Fatalf("expected %d attempts, got %d", DefaultMaxRetries, f.session.resets)
	}
	if stats.Failed != 1 || stats.Succeeded != 0 || stats.Attempted != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	got := f.store.Get(r.ID)
	if got.Status != domain.StatusFailed || got.SubmissionError == nil || got.LastAttempt == nil {
		t.Fatalf("expected failed bookkeeping, got %+v", got)
	}

	backoffs := 0
	for _, d := range f.clock.sleeps {
		if d == DefaultRetryBackoff {
			backoffs++
		}
	}
	if backoffs != DefaultMaxRetries-1 {
		t.Fatalf("expected %d backoffs, got %d", DefaultMaxRetries-1, backoffs)
	}
	if f.session.closed != 1 {
		t.Fatal("session must be closed once")
	}
}

func TestRunStopsRetryingOnSuccess(t *testing.T) {
	r := readyReport(0)
	f := newOrchestratorFixture(t, r)
	f.session.failSubmits = 1

	stats, err := f.orch.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.session.submits != 2 {
		t.Fatalf("expected success on the second attempt, got %d submits", f.session.submits)
	}
	if stats.Succeeded != 1 || stats.Failed != 0 || stats.SuccessRate != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	got := f.store.Get(r.ID)
	if got.Status != domain.StatusSubmitted || got.SubmissionError != nil || got.LastAttempt != nil {
		t.Fatalf("success must clear failure fields, got %+v", got)
	}
}

func TestRunOldestFirstWithDelayBetweenReports(t *testing.T) {
	newer := readyReport(10 * time.Minute)
	newer.Description = "newer"
	older := readyReport(0)
	older.Description = "older"
	anon := readyReport(5 * time.Minute)
	anon.Description = "middle"
	anon.IsAnonymous = true

	f := newOrchestratorFixture(t, newer, older, anon)
	stats, err := f.orch.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"older", AnonymousPrefix + "middle", "newer"}
	if len(f.session.descriptions) != len(want) {
		t.Fatalf("expected %d submissions, got %v", len(want), f.session.descriptions)
	}
	for i := range want {
		if f.session.descriptions[i] != want[i] {
			t.Fatalf("submission %d: want %q, got %q", i, want[i], f.session.descriptions[i])
		}
	}

	if stats.Anonymous != 1 || stats.Authenticated != 2 || stats.Succeeded != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	delays := 0
	for _, d := range f.clock.sleeps {
		if d == DefaultReportDelay {
			delays++
		}
	}
	if delays != 2 {
		t.Fatalf("expected a delay between each pair of reports, got %d", delays)
	}
	if f.opener.opens != 1 {
		t.Fatalf("expected one session for the whole run, got %d", f.opener.opens)
	}
}

func TestRunSweepsStaleFailures(t *testing.T) {
	stale := readyReport(0)
	stale.Status = domain.StatusFailed
	staleAt := testNow.Add(-2 * time.Hour)
	msg := "timeout"
	stale.LastAttempt = &staleAt
	stale.SubmissionError = &msg

	fresh := readyReport(0)
	fresh.Status = domain.StatusFailed
	freshAt := testNow.Add(-10 * time.Minute)
	fresh.LastAttempt = &freshAt
	fresh.SubmissionError = &msg

	f := newOrchestratorFixture(t, stale, fresh)
	stats, err := f.orch.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Reopened != 1 {
		t.Fatalf("expected one reopened report, got %d", stats.Reopened)
	}

	got := f.store.Get(stale.ID)
	if got.Status != domain.StatusUnsubmitted || got.SubmissionError != nil || got.LastAttempt != nil {
		t.Fatalf("stale failure not reopened: %+v", got)
	}
	kept := f.store.Get(fresh.ID)
	if kept.Status != domain.StatusFailed || kept.SubmissionError == nil {
		t.Fatalf("failure inside cooldown must be untouched: %+v", kept)
	}
	if f.opener.opens != 0 {
		t.Fatal("failed reports are not picked up by a run")
	}
}

func TestRunOpenFailureAborts(t *testing.T) {
	r := readyReport(0)
	f := newOrchestratorFixture(t, r)
	f.opener.err = errors.New("chrome not found")

	stats, err := f.orch.Run(context.Background(), "test")
	if err == nil {
		t.Fatal("expected channel setup failure to abort the run")
	}
	if stats.Status != RunAborted {
		t.Fatalf("expected aborted run, got %q", stats.Status)
	}
	if f.store.Get(r.ID).Status != domain.StatusReady {
		t.Fatal("report status must not change when the run aborts")
	}
	if len(f.recorder.runs) != 1 || f.recorder.runs[0].Status != RunAborted {
		t.Fatalf("expected aborted summary to be recorded, got %+v", f.recorder.runs)
	}
}

func TestRunSummaryFailureDoesNotAffectReports(t *testing.T) {
	r := readyReport(0)
	f := newOrchestratorFixture(t, r)
	f.recorder.err = errors.New("insert failed")

	stats, err := f.orch.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("summary errors must be swallowed, got %v", err)
	}
	if stats.Status != RunCompleted || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if f.store.Get(r.ID).Status != domain.StatusSubmitted {
		t.Fatal("report status must survive a summary failure")
	}
}

func TestRunWithNothingReady(t *testing.T) {
	f := newOrchestratorFixture(t)
	stats, err := f.orch.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.opener.opens != 0 {
		t.Fatal("no session should be opened without work")
	}
	if stats.SuccessRate != 0 || stats.Attempted != 0 || stats.Status != RunCompleted {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRunListFailureIsFatal(t *testing.T) {
	f := newOrchestratorFixture(t, readyReport(0))
	f.store.ListErr = errors.New("db down")

	stats, err := f.orch.Run(context.Background(), "test")
	if err == nil || stats.Status != RunFailed {
		t.Fatalf("expected failed run, got %+v err=%v", stats, err)
	}
}

func TestRunSkipsWhenLockHeld(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := redislock.New(client)

	held, err := locker.Obtain(context.Background(), RunLockKey, time.Minute)
	if err != nil {
		t.Fatalf("obtain: %v", err)
	}

	f := newOrchestratorFixture(t, readyReport(0))
	f.orch = NewOrchestrator(f.store, newTestDriver(f.store, nil, f.clock), f.opener, DefaultRunOptions(),
		logger.Discard(), WithClock(f.clock), WithRunLock(locker))

	stats, err := f.orch.Run(context.Background(), "test")
	if !errors.Is(err, ErrRunInProgress) || stats.Status != RunSkipped {
		t.Fatalf("expected skipped run, got %+v err=%v", stats, err)
	}
	if f.opener.opens != 0 {
		t.Fatal("a skipped run must not open the channel")
	}

	if err := held.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := f.orch.Run(context.Background(), "test"); err != nil {
		t.Fatalf("run after release: %v", err)
	}
	if srv.Exists(RunLockKey) {
		t.Fatal("run lock must be released after the run")
	}
}

func TestRunNeverRefilesWhenStatusWriteFails(t *testing.T) {
	r := readyReport(0)
	f := newOrchestratorFixture(t, r)
	f.store.MarkSubmittedErr = errors.New("connection reset")

	stats, err := f.orch.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.session.submits != 1 {
		t.Fatalf("expected the form filed once, got %d submits", f.session.submits)
	}
	if stats.Succeeded != 1 || stats.Failed != 0 || stats.Unrecorded != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if f.store.Calls.MarkFailed != 0 {
		t.Fatal("a filed report must never be marked failed")
	}
}

// blockingOpener hands out sessions whose Submit waits for release.
type blockingOpener struct {
	mu       sync.Mutex
	opens    int
	submits  int
	entered  chan struct{}
	release  chan struct{}
	sessions []*fakeSession
}

func (o *blockingOpener) Open(context.Context) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	s := newFakeSession()
	o.sessions = append(o.sessions, s)
	return &blockingSession{fakeSession: s, opener: o}, nil
}

type blockingSession struct {
	*fakeSession
	opener *blockingOpener
}

func (s *blockingSession) Submit(ctx context.Context) error {
	s.opener.mu.Lock()
	s.opener.submits++
	s.opener.mu.Unlock()
	s.opener.entered <- struct{}{}
	<-s.opener.release
	return s.fakeSession.Submit(ctx)
}

func TestRunIsExclusiveWithinProcess(t *testing.T) {
	r := readyReport(0)
	store := reportstest.New(r)
	clock := newFakeClock()
	opener := &blockingOpener{entered: make(chan struct{}, 2), release: make(chan struct{})}
	orch := NewOrchestrator(store, newTestDriver(store, nil, clock), opener, DefaultRunOptions(),
		logger.Discard(), WithClock(clock))

	first := make(chan error, 1)
	go func() {
		_, err := orch.Run(context.Background(), "first")
		first <- err
	}()
	<-opener.entered

	stats, err := orch.Run(context.Background(), "second")
	if !errors.Is(err, ErrRunInProgress) || stats.Status != RunSkipped {
		t.Fatalf("expected the overlapping run to be skipped, got %+v err=%v", stats, err)
	}

	close(opener.release)
	if err := <-first; err != nil {
		t.Fatalf("first run: %v", err)
	}

	if opener.opens != 1 || opener.submits != 1 {
		t.Fatalf("expected one session and one filed form, got opens=%d submits=%d", opener.opens, opener.submits)
	}
	if got := store.Get(r.ID); got.Status != domain.StatusSubmitted {
		t.Fatalf("expected submitted, got %s", got.Status)
	}

	if _, err := orch.Run(context.Background(), "third"); err != nil {
		t.Fatalf("run after the first finished: %v", err)
	}
}
