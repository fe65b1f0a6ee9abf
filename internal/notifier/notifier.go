package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/mail-risk-analyzer/internal/core"
	"go.uber.org/zap"
)

// Default intervals
const (
	DefaultPollInterval      = 30 * time.Second
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultErrorBackoff      = 30 * time.Second
)

// Event kinds, used as SSE event names
const (
	KindUpdate    = "email_update"
	KindHeartbeat = "heartbeat"
	KindError     = "error"
)

// LatestEmail identifies the newest message of an update event
type LatestEmail struct {
	UID       string `json:"uid"`
	Subject   string `json:"subject"`
	From      string `json:"from_addr"`
	Score     int    `json:"score"`
	RiskLevel string `json:"risk_level"`
}

// Event is a change notification sent to one subscriber
type Event struct {
	ID         string       `json:"id"`
	Kind       string       `json:"-"`
	Type       string       `json:"type,omitempty"`
	Timestamp  int64        `json:"timestamp"`
	EmailCount int          `json:"email_count,omitempty"`
	Latest     *LatestEmail `json:"latest_email,omitempty"`
	Status     string       `json:"status,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// EmitFunc delivers an event; an error ends the subscription
type EmitFunc func(Event) error

// Source is what the notifier polls
type Source interface {
	MessageCount(ctx context.Context) (int, error)
	AnalyzeLatest(ctx context.Context) (*core.AnalysisResult, error)
}

// Config holds the notifier intervals
type Config struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	ErrorBackoff      time.Duration
}

// Notifier runs one change-notification loop per subscriber
type Notifier struct {
	source Source
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates a notifier; zero intervals take their defaults
func New(source Source, cfg Config, logger *zap.Logger) *Notifier {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	return &Notifier{
		source: source,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// pollState is what a subscriber loop remembers between polls. It is only
// touched by the one poll in flight.
type pollState struct {
	lastCount int
	baseline  bool
}

// pollOutcome is what a finished poll reports back to the loop
type pollOutcome struct {
	event *Event
	err   error
	at    time.Time
}

// Run polls until ctx is cancelled or emit fails. The first poll only records
// the message count; later polls emit an update when the count changes.
// Polls run in their own goroutine so heartbeats keep flowing while one is
// blocked on the mailbox or the AI backend.
func (n *Notifier) Run(ctx context.Context, emit EmitFunc) error {
	heartbeat := time.NewTicker(n.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	poll := time.NewTimer(0)
	defer poll.Stop()

	var (
		state    pollState
		lastPoll time.Time
		inFlight chan pollOutcome
	)
	for {
		select {
		case <-ctx.Done():
			n.logger.Debug("Subscriber disconnected", zap.Time("last_poll", lastPoll))
			return nil

		case <-heartbeat.C:
			if err := emit(n.event(KindHeartbeat, func(e *Event) { e.Status = "alive" })); err != nil {
				return fmt.Errorf("failed to emit heartbeat: %w", err)
			}

		case <-poll.C:
			inFlight = make(chan pollOutcome, 1)
			go func(out chan<- pollOutcome) {
				event, err := n.poll(ctx, &state)
				out <- pollOutcome{event: event, err: err, at: n.now()}
			}(inFlight)

		case outcome := <-inFlight:
			inFlight = nil
			lastPoll = outcome.at
			next := n.cfg.PollInterval
			event := outcome.event
			if outcome.err != nil {
				if ctx.Err() != nil {
					return nil
				}
				n.logger.Warn("Change poll failed", zap.Error(outcome.err))
				event = n.errorEvent(outcome.err)
				next = n.cfg.ErrorBackoff
			}
			if event != nil {
				if err := emit(*event); err != nil {
					return fmt.Errorf("failed to emit %s: %w", event.Kind, err)
				}
			}
			poll.Reset(next)
		}
	}
}

func (n *Notifier) poll(ctx context.Context, state *pollState) (*Event, error) {
	count, err := n.source.MessageCount(ctx)
	if err != nil {
		return nil, err
	}

	if !state.baseline {
		state.baseline = true
		state.lastCount = count
		return nil, nil
	}
	if count == state.lastCount {
		return nil, nil
	}

	result, err := n.source.AnalyzeLatest(ctx)
	if err != nil {
		return nil, err
	}
	// A failed resolution keeps the old count and is retried
	state.lastCount = count

	event := n.event(KindUpdate, func(e *Event) {
		e.Type = "new_email"
		e.EmailCount = count
		e.Latest = &LatestEmail{
			UID:       result.MessageID,
			Subject:   result.Subject,
			From:      result.From,
			Score:     result.Final.Score,
			RiskLevel: result.Final.RiskLevel,
		}
	})
	return &event, nil
}

func (n *Notifier) errorEvent(err error) *Event {
	event := n.event(KindError, func(e *Event) { e.Error = err.Error() })
	return &event
}

func (n *Notifier) event(kind string, fill func(*Event)) Event {
	e := Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: n.now().Unix(),
	}
	fill(&e)
	return e
}
