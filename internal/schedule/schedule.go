// Package schedule decides once per tick whether this participant's window
// has arrived and runs at most one dispatch per UTC hour.
//
// Participants coordinate only through wall-clock windows, so clocks across
// the chain are assumed to agree within a few seconds.
package schedule

import (
	"context"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"github.com/raulk/clock"

	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
)

var log = logging.Logger("schedule")

type Kind string

const (
	// Staggered acts once the minute passes index+1.
	Staggered Kind = "staggered"
	// Fixed acts inside a per-participant 12 second slot of one target minute.
	Fixed Kind = "fixed"
)

const (
	slotStride = 15
	slotLength = 12

	// MaxFixedParticipants is how many disjoint slots fit in one minute.
	MaxFixedParticipants = 60 / slotStride

	DefaultStaggeredPeriod = 5 * time.Second
	DefaultFixedPeriod     = time.Second
)

// State is owned by one Scheduler and never persisted.
type State struct {
	LastCompletedWindow int  `json:"last_completed_window"`
	Busy                bool `json:"busy"`
}

func NewState() State {
	return State{LastCompletedWindow: -1}
}

// Complete returns the state after a dispatch for hour finished with err.
func (st State) Complete(hour int, err error) State {
	if err == nil {
		st.LastCompletedWindow = hour
	}
	st.Busy = false

	return st
}

type Policy struct {
	Kind         Kind
	Index        int
	TargetMinute int
}

// ShouldAct reports whether now falls in this participant's window and the
// hour has not been completed yet.
func (p Policy) ShouldAct(now time.Time, st State) bool {
	now = now.UTC()
	if now.Hour() == st.LastCompletedWindow {
		return false
	}
	if p.Kind == Fixed {
		if now.Minute() != p.TargetMinute {
			return false
		}
		start := p.Index * slotStride

		return now.Second() >= start && now.Second() < start+slotLength
	}

	return now.Minute() > p.Index+1
}

// Period is the tick interval for the policy's kind.
func (p Policy) Period() time.Duration {
	if p.Kind == Fixed {
		return DefaultFixedPeriod
	}

	return DefaultStaggeredPeriod
}

// DispatchFunc performs the role's action and returns a short detail for the journal.
type DispatchFunc func(ctx context.Context) (string, error)

type Outcome struct {
	Hour       int
	Detail     string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

type Scheduler struct {
	policy   Policy
	period   time.Duration
	clock    clock.Clock
	dispatch DispatchFunc
	observe  func(Outcome)

	mu    sync.Mutex
	state State
}

func New(policy Policy, period time.Duration, clk clock.Clock, dispatch DispatchFunc, observe func(Outcome)) *Scheduler {
	if period <= 0 {
		period = policy.Period()
	}
	if observe == nil {
		observe = func(Outcome) {}
	}

	return &Scheduler{
		policy:   policy,
		period:   period,
		clock:    clk,
		dispatch: dispatch,
		observe:  observe,
		state:    NewState(),
	}
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Tick dispatches if the window is open and nothing is in flight. It reports
// whether a dispatch ran.
func (s *Scheduler) Tick(ctx context.Context) bool {
	now := s.clock.Now().UTC()

	s.mu.Lock()
	if s.state.Busy || !s.policy.ShouldAct(now, s.state) {
		s.mu.Unlock()
		log.Debugw("idle", "hour", now.Hour(), "minute", now.Minute(), "second", now.Second())

		return false
	}
	s.state.Busy = true
	s.mu.Unlock()

	log.Infow("window open, dispatching", "hour", now.Hour())
	detail, err := s.safeDispatch(ctx)

	s.mu.Lock()
	s.state = s.state.Complete(now.Hour(), err)
	s.mu.Unlock()

	outcome := Outcome{
		Hour:       now.Hour(),
		Detail:     detail,
		Err:        err,
		StartedAt:  now,
		FinishedAt: s.clock.Now().UTC(),
	}
	if err != nil {
		logFailure(outcome)
	} else {
		log.Infow("window completed", "hour", outcome.Hour, "detail", detail)
	}
	s.observe(outcome)

	return true
}

// Run ticks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.Ticker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.Tick(ctx)
	}
}

func (s *Scheduler) safeDispatch(ctx context.Context) (detail string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("dispatch panicked: %v", r)
		}
	}()

	return s.dispatch(ctx)
}

// idle reports whether err only means there was nothing to do this window.
func idle(err error) bool {
	return errors.Is(err, domain.ErrNoOperations)
}

func logFailure(o Outcome) {
	if idle(o.Err) {
		log.Debugw("nothing to do, window stays open", "hour", o.Hour, "reason", o.Err)

		return
	}
	kv := []any{"hour", o.Hour, "kind", domain.ErrorKind(o.Err), "err", o.Err}
	var relayErr *domain.RelayError
	if errors.As(o.Err, &relayErr) {
		kv = append(kv,
			"predecessor", relayErr.Predecessor,
			"operations", relayErr.Operations,
			"expiration", relayErr.Expiration,
		)
	}
	log.Errorw("dispatch failed, window stays open until next hour", kv...)
}
