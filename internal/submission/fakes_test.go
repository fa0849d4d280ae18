package submission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"civicfix_backend/internal/classifier"
	"civicfix_backend/internal/reports/domain"
	"civicfix_backend/internal/reports/reportstest"
	"civicfix_backend/platform/logger"

	"github.com/google/uuid"
)

var testSentinel = domain.SentinelIdentity{
	Name:     "CivicFix",
	Surname:  "Support",
	Email:    "support@civicfix.org",
	Mobile:   "9999999999",
	Gender:   "Other",
	District: "Bhopal",
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock { return &fakeClock{now: testNow} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

type fakeSession struct {
	failFill   map[string]error
	failSelect map[string]error
	resetErr   error
	submitErr  error
	attachErr  error
	// failSubmits fails the first n Submit calls.
	failSubmits int

	resets       int
	submits      int
	closed       int
	filled       map[string]string
	selected     map[string]string
	attached     []string
	attachedData []byte
	descriptions []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		failFill:   map[string]error{},
		failSelect: map[string]error{},
		filled:     map[string]string{},
		selected:   map[string]string{},
	}
}

func (s *fakeSession) Reset(context.Context) error {
	s.resets++
	return s.resetErr
}

func (s *fakeSession) Fill(_ context.Context, field, value string) error {
	if err := s.failFill[field]; err != nil {
		return err
	}
	s.filled[field] = value
	if field == FieldDescription {
		s.descriptions = append(s.descriptions, value)
	}
	return nil
}

func (s *fakeSession) Select(_ context.Context, field, option string) error {
	if err := s.failSelect[field]; err != nil {
		return err
	}
	s.selected[field] = option
	return nil
}

func (s *fakeSession) AttachFile(_ context.Context, field, path string) error {
	s.attached = append(s.attached, path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("staged file unreadable: %w", err)
	}
	s.attachedData = data
	return s.attachErr
}

func (s *fakeSession) Submit(context.Context) error {
	s.submits++
	if s.submits <= s.failSubmits {
		return errors.New("submit button not found")
	}
	return s.submitErr
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

func (s *fakeSession) Method() string { return "fake" }

type fakeOpener struct {
	session *fakeSession
	err     error
	opens   int
}

func (o *fakeOpener) Open(context.Context) (Session, error) {
	o.opens++
	if o.err != nil {
		return nil, o.err
	}
	return o.session, nil
}

type fakeImages struct {
	data map[string][]byte
	err  error
}

func (f fakeImages) Fetch(_ context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.data[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return bytes.Clone(data), nil
}

type fakeRecorder struct {
	runs []RunStats
	err  error
}

func (r *fakeRecorder) Record(_ context.Context, stats RunStats) error {
	r.runs = append(r.runs, stats)
	return r.err
}

func readyReport(createdOffset time.Duration) domain.Report {
	return domain.Report{
		ID:          uuid.New(),
		Category:    "pothole",
		Department:  "Public Works",
		Priority:    domain.PriorityHigh,
		Description: "Deep pothole near the market",
		Status:      domain.StatusReady,
		Contact: domain.Contact{
			Name:     "Asha",
			Surname:  "Verma",
			Email:    "asha@example.com",
			Mobile:   "9876543210",
			Gender:   "female",
			District: "Indore",
			AreaType: "urban",
		},
		CreatedAt: testNow.Add(-time.Hour).Add(createdOffset),
	}
}

func newTestDriver(store *reportstest.Store, images ImageSource, clock Clock, opts ...DriverOption) *Driver {
	opts = append([]DriverOption{WithDriverClock(clock), WithTempDir(os.TempDir())}, opts...)
	return NewDriver(store, images, classifier.DefaultRoutingTable(), testSentinel, logger.Discard(), opts...)
}
