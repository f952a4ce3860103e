package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/detector"
	"CryptoSentinel/internal/history"
	"CryptoSentinel/internal/notifier"
	"CryptoSentinel/internal/opportunity"
	"CryptoSentinel/internal/recorder"
	"CryptoSentinel/internal/subscriber"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	DefaultFetchLimit      = 200
	DefaultMaintenanceCron = "0 0 3 * * *"
	DefaultRetentionDays   = 30
	sendRetries            = 3
)

// Sender delivers a text message to one chat.
type Sender interface {
	SendWithRetry(ctx context.Context, chatID int64, text string, maxRetries int) error
}

// Options tunes the loops run by the Scheduler.
type Options struct {
	PollInterval     time.Duration
	AlertCheck       time.Duration
	AlertInterval    time.Duration
	FetchLimit       int
	MaxOpportunities int
	BackoffInitial   time.Duration
	BackoffMax       time.Duration
	RetentionDays    int
	MaintenanceCron  string
}

func (o *Options) applyDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Minute
	}
	if o.AlertCheck <= 0 {
		o.AlertCheck = 5 * time.Minute
	}
	if o.AlertInterval <= 0 {
		o.AlertInterval = opportunity.DefaultAlertInterval
	}
	if o.FetchLimit <= 0 {
		o.FetchLimit = DefaultFetchLimit
	}
	if o.MaxOpportunities <= 0 {
		o.MaxOpportunities = opportunity.DefaultCapacity
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = DefaultBackoffInitial
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = DefaultBackoffMax
	}
	if o.RetentionDays <= 0 {
		o.RetentionDays = DefaultRetentionDays
	}
	if o.MaintenanceCron == "" {
		o.MaintenanceCron = DefaultMaintenanceCron
	}
}

// Scheduler owns the polling, alerting and maintenance loops.
type Scheduler struct {
	Cron        *cron.Cron
	Fetcher     collector.Fetcher
	History     *history.Store
	Detector    *detector.Detector
	Log         *opportunity.Log
	Subscribers *subscriber.Manager
	Notifier    Sender
	Recorder    recorder.Recorder
	Logger      *logrus.Logger
	Options     Options

	now func() time.Time
	wg  sync.WaitGroup
}

// NewScheduler creates a new Scheduler.
func NewScheduler(
	fetcher collector.Fetcher,
	store *history.Store,
	det *detector.Detector,
	oppLog *opportunity.Log,
	subs *subscriber.Manager,
	sender Sender,
	rec recorder.Recorder,
	opts Options,
	logger *logrus.Logger,
) *Scheduler {
	opts.applyDefaults()
	return &Scheduler{
		Cron:        cron.New(cron.WithSeconds()),
		Fetcher:     fetcher,
		History:     store,
		Detector:    det,
		Log:         oppLog,
		Subscribers: subs,
		Notifier:    sender,
		Recorder:    rec,
		Logger:      logger,
		Options:     opts,
		now:         time.Now,
	}
}

// Start registers the maintenance job and launches the poll and alert loops.
// The loops stop when ctx is cancelled; call Stop to wait for them.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.Cron.AddFunc(s.Options.MaintenanceCron, s.maintenance); err != nil {
		return fmt.Errorf("register maintenance task: %w", err)
	}
	s.Cron.Start()

	tasks := []*Task{
		NewTask("poll", s.PollOnce, cron.Every(s.Options.PollInterval),
			NewBackoff(s.Options.BackoffInitial, s.Options.BackoffMax), s.Logger),
		NewTask("alert", s.AlertOnce, cron.Every(s.Options.AlertCheck),
			NewBackoff(s.Options.BackoffInitial, s.Options.BackoffMax), s.Logger),
	}
	for _, t := range tasks {
		s.wg.Add(1)
		go func(t *Task) {
			defer s.wg.Done()
			t.Start(ctx)
		}(t)
	}
	s.Logger.WithFields(logrus.Fields{
		"poll_interval":  s.Options.PollInterval,
		"alert_interval": s.Options.AlertInterval,
	}).Info("Scheduler started")
	return nil
}

// Stop halts the cron jobs and waits for the loops to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.wg.Wait()
	s.Logger.Info("Scheduler stopped")
}

// PollOnce fetches a market snapshot, evaluates every quote and logs the
// opportunities found.
func (s *Scheduler) PollOnce(ctx context.Context) error {
	quotes, err := s.Fetcher.FetchQuotes(ctx, s.Options.FetchLimit)
	if err != nil {
		return fmt.Errorf("fetch quotes: %w", err)
	}

	opps := s.Detector.EvaluateAll(quotes)
	for _, opp := range opps {
		logged := s.Log.Append(opp)
		if err := s.Recorder.RecordOpportunity(&logged); err != nil {
			s.Logger.WithError(err).WithField("symbol", logged.Symbol).Error("Failed to record opportunity")
		}
		s.Logger.WithFields(logrus.Fields{
			"symbol":     logged.Symbol,
			"change_pct": logged.PriceChangePct,
			"confidence": logged.ConfidenceScore,
		}).Info("Opportunity detected")
	}
	s.Logger.WithFields(logrus.Fields{
		"quotes":        len(quotes),
		"opportunities": len(opps),
	}).Debug("Poll cycle complete")
	return nil
}

// AlertOnce sends the recent opportunities to every subscriber when the
// alert interval has elapsed. Per-chat failures are joined into the result.
func (s *Scheduler) AlertOnce(ctx context.Context) error {
	if !s.Log.ShouldAlert(s.now()) {
		return nil
	}
	opps := s.Log.Recent()
	if len(opps) == 0 {
		s.Logger.Debug("Alert window reached with no opportunities")
		return nil
	}

	text := notifier.FormatAlert(opps)
	chats := s.Subscribers.List()
	evt := &recorder.AlertEvent{
		SentAt:        s.now(),
		Opportunities: len(opps),
		Recipients:    len(chats),
	}

	var errs []error
	for _, chatID := range chats {
		if err := s.Notifier.SendWithRetry(ctx, chatID, text, sendRetries); err != nil {
			evt.Failed++
			s.Logger.WithError(err).WithField("chat_id", chatID).Error("Failed to deliver alert")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		evt.Delivered++
	}

	if err := s.Recorder.RecordAlert(evt); err != nil {
		s.Logger.WithError(err).Error("Failed to record alert")
	}
	s.Logger.WithFields(logrus.Fields{
		"opportunities": evt.Opportunities,
		"delivered":     evt.Delivered,
		"failed":        evt.Failed,
	}).Info("Alert sent")
	return errors.Join(errs...)
}

// HandleCommand processes a chat command and returns the reply.
func (s *Scheduler) HandleCommand(chatID int64, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	command := fields[0]
	if i := strings.Index(command, "@"); i >= 0 {
		command = command[:i]
	}

	switch command {
	case "/start", "/help":
		return notifier.FormatWelcome(s.Options.MaxOpportunities, s.Options.AlertInterval)
	case "/subscribe":
		s.Subscribers.Add(chatID)
		return "✅ You've been subscribed to crypto alerts!"
	case "/unsubscribe":
		s.Subscribers.Remove(chatID)
		return "❌ You've been unsubscribed from crypto alerts."
	case "/opportunities":
		return notifier.FormatAlert(s.Log.Recent())
	case "/status":
		last := s.Log.LastAlertAt()
		return notifier.FormatStatus(notifier.Status{
			DataSource:     s.Fetcher.Name(),
			TrackedSymbols: len(s.History.Symbols()),
			Opportunities:  s.Log.Len(),
			Subscribers:    s.Subscribers.Len(),
			Subscribed:     s.Subscribers.Contains(chatID),
			LastAlertAt:    last,
			NextAlertAt:    last.Add(s.Options.AlertInterval),
		})
	default:
		if strings.HasPrefix(command, "/") {
			return "Unknown command. Send /start to see the available commands."
		}
		return ""
	}
}

func (s *Scheduler) maintenance() {
	cutoff := s.now().AddDate(0, 0, -s.Options.RetentionDays)
	n, err := s.Recorder.Prune(cutoff)
	if err != nil {
		s.Logger.WithError(err).Error("Maintenance prune failed")
		return
	}
	s.Logger.WithFields(logrus.Fields{
		"removed": n,
		"before":  cutoff.Format(time.RFC3339),
	}).Info("Maintenance prune complete")
}
