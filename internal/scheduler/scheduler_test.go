package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"CryptoSentinel/internal/calculator"
	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/detector"
	"CryptoSentinel/internal/history"
	"CryptoSentinel/internal/logging"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/notifier"
	"CryptoSentinel/internal/opportunity"
	"CryptoSentinel/internal/recorder"
	"CryptoSentinel/internal/subscriber"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	sent map[int64][]string
	fail map[int64]bool
}

func (f *fakeSender) SendWithRetry(_ context.Context, chatID int64, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[chatID] {
		return errors.New("chat not found")
	}
	if f.sent == nil {
		f.sent = make(map[int64][]string)
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, msgs := range f.sent {
		n += len(msgs)
	}
	return n
}

type fakeRecorder struct {
	mu     sync.Mutex
	opps   []model.Opportunity
	alerts []recorder.AlertEvent
	pruned []time.Time
}

func (r *fakeRecorder) RecordOpportunity(opp *model.Opportunity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opps = append(r.opps, *opp)
	return nil
}

func (r *fakeRecorder) RecordAlert(evt *recorder.AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, *evt)
	return nil
}

func (r *fakeRecorder) Prune(before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruned = append(r.pruned, before)
	return 3, nil
}

func (r *fakeRecorder) Close() error { return nil }

type fixture struct {
	sched   *Scheduler
	fetcher *collector.MockFetcher
	sender  *fakeSender
	rec     *fakeRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := logging.Discard()

	store := history.NewStore(history.DefaultCapacity)
	det := detector.New(store, calculator.NewScorer(calculator.DefaultTrendLookback), detector.DefaultThresholdPct, logger)
	oppLog := opportunity.NewLog(opportunity.NewFileStateStore(filepath.Join(dir, "opps.json")),
		opportunity.DefaultCapacity, time.Hour, logger)
	subs := subscriber.NewManager(subscriber.NewFileStore(filepath.Join(dir, "chats.json")), logger)

	f := &fixture{
		fetcher: &collector.MockFetcher{},
		sender:  &fakeSender{fail: map[int64]bool{}},
		rec:     &fakeRecorder{},
	}
	f.sched = NewScheduler(f.fetcher, store, det, oppLog, subs, f.sender, f.rec, Options{
		PollInterval: time.Second,
		AlertCheck:   time.Second,
	}, logger)
	return f
}

func (f *fixture) spike(t *testing.T) {
	t.Helper()
	f.fetcher.Quotes = []model.Quote{{Symbol: "BTC", Price: 100, Volume24h: 1000}}
	require.NoError(t, f.sched.PollOnce(context.Background()))
	f.fetcher.Quotes = []model.Quote{{Symbol: "BTC", Price: 102, Volume24h: 1000}}
	require.NoError(t, f.sched.PollOnce(context.Background()))
}

func TestPollOnce_LogsAndRecordsOpportunities(t *testing.T) {
	f := newFixture(t)
	f.spike(t)

	recent := f.sched.Log.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, "BTC", recent[0].Symbol)
	assert.InDelta(t, 2.0, recent[0].PriceChangePct, 1e-9)
	assert.Equal(t, 80.0, recent[0].ConfidenceScore)
	assert.False(t, recent[0].LoggedAt.IsZero())

	require.Len(t, f.rec.opps, 1)
	assert.Equal(t, recent[0].ID, f.rec.opps[0].ID)
	assert.Equal(t, 2, f.sched.History.Len("BTC"))
}

func TestPollOnce_FetchError(t *testing.T) {
	f := newFixture(t)
	f.fetcher.Err = errors.New("rate limited")

	err := f.sched.PollOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, 0, f.sched.Log.Len())
}

func TestAlertOnce_RespectsGate(t *testing.T) {
	f := newFixture(t)
	f.spike(t)
	f.sched.Subscribers.Add(1)

	require.NoError(t, f.sched.AlertOnce(context.Background()))
	assert.Equal(t, 0, f.sender.count())
	assert.Empty(t, f.rec.alerts)
}

func TestAlertOnce_DeliversToSubscribers(t *testing.T) {
	f := newFixture(t)
	f.spike(t)
	f.sched.Subscribers.Add(1)
	f.sched.Subscribers.Add(2)
	f.sched.Subscribers.Add(3)
	f.sender.fail[2] = true

	later := time.Now().Add(2 * time.Hour)
	f.sched.now = func() time.Time { return later }

	err := f.sched.AlertOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat 2")

	assert.Len(t, f.sender.sent[1], 1)
	assert.Len(t, f.sender.sent[3], 1)
	assert.Equal(t, f.sender.sent[1][0], f.sender.sent[3][0])
	assert.True(t, strings.HasPrefix(f.sender.sent[1][0], "⏰ Hourly Crypto Alert"))

	require.Len(t, f.rec.alerts, 1)
	assert.Equal(t, recorder.AlertEvent{
		SentAt:        later,
		Opportunities: 1,
		Recipients:    3,
		Delivered:     2,
		Failed:        1,
	}, f.rec.alerts[0])
	assert.Equal(t, later, f.sched.Log.LastAlertAt())

	// Gate was reset, so an immediate second check sends nothing.
	require.NoError(t, f.sched.AlertOnce(context.Background()))
	assert.Equal(t, 2, f.sender.count())
}

func TestAlertOnce_EmptyLog(t *testing.T) {
	f := newFixture(t)
	f.sched.Subscribers.Add(1)
	f.sched.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	require.NoError(t, f.sched.AlertOnce(context.Background()))
	assert.Equal(t, 0, f.sender.count())
}

func TestHandleCommand(t *testing.T) {
	f := newFixture(t)
	const chat = int64(42)

	welcome := f.sched.HandleCommand(chat, "/start")
	assert.Contains(t, welcome, "/subscribe")
	assert.Contains(t, welcome, "last 10")

	assert.Equal(t, notifier.NoOpportunitiesMessage, f.sched.HandleCommand(chat, "/opportunities"))

	assert.Contains(t, f.sched.HandleCommand(chat, "/subscribe@CryptoSentinelBot"), "subscribed")
	assert.True(t, f.sched.Subscribers.Contains(chat))

	status := f.sched.HandleCommand(chat, "/status")
	assert.Contains(t, status, "Data source: mock")
	assert.Contains(t, status, "This chat subscribed: true")

	assert.Contains(t, f.sched.HandleCommand(chat, "/unsubscribe"), "unsubscribed")
	assert.False(t, f.sched.Subscribers.Contains(chat))

	f.spike(t)
	opps := f.sched.HandleCommand(chat, "/opportunities")
	assert.Contains(t, opps, "1. BTC")

	assert.Contains(t, f.sched.HandleCommand(chat, "/bogus"), "Unknown command")
	assert.Empty(t, f.sched.HandleCommand(chat, "hello"))
	assert.Empty(t, f.sched.HandleCommand(chat, "   "))
}

func TestMaintenance_PrunesByRetention(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 5, 31, 3, 0, 0, 0, time.UTC)
	f.sched.now = func() time.Time { return now }

	f.sched.maintenance()

	require.Len(t, f.rec.pruned, 1)
	assert.Equal(t, now.AddDate(0, 0, -DefaultRetentionDays), f.rec.pruned[0])
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, f.sched.Start(ctx))
	require.Eventually(t, func() bool { return f.fetcher.Calls() >= 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	f.sched.Stop()
	assert.Positive(t, len(f.sched.History.Symbols()))
}

func TestStart_InvalidMaintenanceSpec(t *testing.T) {
	f := newFixture(t)
	f.sched.Options.MaintenanceCron = "not a cron"
	assert.Error(t, f.sched.Start(context.Background()))
}
