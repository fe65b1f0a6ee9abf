package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	mu       sync.Mutex
	count    int
	countErr error
	resolved int
}

func (f *fakeSource) setCount(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count = n
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countErr = err
}

func (f *fakeSource) MessageCount(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, f.countErr
}

func (f *fakeSource) AnalyzeLatest(context.Context) (*core.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved++
	return &core.AnalysisResult{
		MessageID: "99",
		Subject:   "Urgent: verify account",
		From:      "security@paypa1.test",
		Final:     core.CompositeScore{Score: 85, RiskLevel: core.RiskHigh},
	}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) emit(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) kinds(kind string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func runNotifier(t *testing.T, n *Notifier, rec *recorder) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx, rec.emit) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestNotifier_FirstPollIsBaseline(t *testing.T) {
	src := &fakeSource{count: 3}
	rec := &recorder{}
	n := New(src, Config{PollInterval: 5 * time.Millisecond, HeartbeatInterval: time.Hour, ErrorBackoff: time.Hour}, zap.NewNop())

	cancel, done := runNotifier(t, n, rec)
	time.Sleep(40 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Empty(t, rec.kinds(KindUpdate))
	assert.Equal(t, 0, src.resolved)
}

func TestNotifier_EmitsUpdateOnCountChange(t *testing.T) {
	src := &fakeSource{count: 3}
	rec := &recorder{}
	n := New(src, Config{PollInterval: 5 * time.Millisecond, HeartbeatInterval: time.Hour, ErrorBackoff: time.Hour}, zap.NewNop())

	runNotifier(t, n, rec)
	time.Sleep(20 * time.Millisecond)
	src.setCount(4)

	require.Eventually(t, func() bool { return len(rec.kinds(KindUpdate)) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	updates := rec.kinds(KindUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, "new_email", updates[0].Type)
	assert.Equal(t, 4, updates[0].EmailCount)
	assert.Equal(t, &LatestEmail{UID: "99", Subject: "Urgent: verify account", From: "security@paypa1.test", Score: 85, RiskLevel: core.RiskHigh}, updates[0].Latest)
	assert.NotEmpty(t, updates[0].ID)
}

func TestNotifier_Heartbeat(t *testing.T) {
	rec := &recorder{}
	n := New(&fakeSource{}, Config{PollInterval: time.Hour, HeartbeatInterval: 5 * time.Millisecond}, zap.NewNop())

	runNotifier(t, n, rec)

	require.Eventually(t, func() bool { return len(rec.kinds(KindHeartbeat)) >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "alive", rec.kinds(KindHeartbeat)[0].Status)
}

// slowSource reports a growing count and never finishes resolving the latest message
type slowSource struct {
	mu    sync.Mutex
	count int
}

func (s *slowSource) MessageCount(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return s.count, nil
}

func (s *slowSource) AnalyzeLatest(ctx context.Context) (*core.AnalysisResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestNotifier_HeartbeatWhilePollBlocks(t *testing.T) {
	rec := &recorder{}
	n := New(&slowSource{}, Config{PollInterval: 20 * time.Millisecond, HeartbeatInterval: 10 * time.Millisecond, ErrorBackoff: time.Hour}, zap.NewNop())

	cancel, done := runNotifier(t, n, rec)
	time.Sleep(300 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.GreaterOrEqual(t, len(rec.kinds(KindHeartbeat)), 10)
	assert.Empty(t, rec.kinds(KindUpdate))
	assert.Empty(t, rec.kinds(KindError))
}

func TestNotifier_ErrorBacksOff(t *testing.T) {
	src := &fakeSource{countErr: errors.New("imap timeout")}
	rec := &recorder{}
	n := New(src, Config{PollInterval: 5 * time.Millisecond, HeartbeatInterval: time.Hour, ErrorBackoff: 200 * time.Millisecond}, zap.NewNop())

	runNotifier(t, n, rec)
	require.Eventually(t, func() bool { return len(rec.kinds(KindError)) == 1 }, time.Second, 2*time.Millisecond)

	// Within the backoff there is no second poll
	time.Sleep(60 * time.Millisecond)
	errs := rec.kinds(KindError)
	require.Len(t, errs, 1)
	assert.Equal(t, "imap timeout", errs[0].Error)

	// After the backoff the normal cadence resumes and sets the baseline
	src.setErr(nil)
	src.setCount(1)
	time.Sleep(250 * time.Millisecond)
	src.setCount(2)
	require.Eventually(t, func() bool { return len(rec.kinds(KindUpdate)) == 1 }, time.Second, 5*time.Millisecond)
}

func TestNotifier_StopsWhenEmitFails(t *testing.T) {
	n := New(&fakeSource{}, Config{PollInterval: time.Hour, HeartbeatInterval: 2 * time.Millisecond}, zap.NewNop())
	gone := errors.New("client gone")

	err := n.Run(context.Background(), func(Event) error { return gone })

	assert.ErrorIs(t, err, gone)
}

func TestNew_Defaults(t *testing.T) {
	n := New(&fakeSource{}, Config{}, zap.NewNop())

	assert.Equal(t, DefaultPollInterval, n.cfg.PollInterval)
	assert.Equal(t, DefaultHeartbeatInterval, n.cfg.HeartbeatInterval)
	assert.Equal(t, DefaultErrorBackoff, n.cfg.ErrorBackoff)
}
