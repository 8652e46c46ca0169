package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/raulk/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
)

func at(hour, minute, second int) time.Time {
	return time.Date(2026, 10, 19, hour, minute, second, 0, time.UTC)
}

func TestShouldAct_Staggered(t *testing.T) {
	p := Policy{Kind: Staggered, Index: 2}
	st := NewState()

	assert.False(t, p.ShouldAct(at(14, 2, 59), st))
	assert.False(t, p.ShouldAct(at(14, 3, 0), st))
	assert.True(t, p.ShouldAct(at(14, 4, 0), st))
	assert.True(t, p.ShouldAct(at(0, 59, 59), st))

	st.LastCompletedWindow = 14
	assert.False(t, p.ShouldAct(at(14, 30, 0), st))
	assert.True(t, p.ShouldAct(at(15, 30, 0), st))
}

func TestShouldAct_FixedSlots(t *testing.T) {
	st := NewState()
	for index := 0; index < MaxFixedParticipants; index++ {
		p := Policy{Kind: Fixed, Index: index, TargetMinute: 7}
		start := index * 15

		assert.True(t, p.ShouldAct(at(9, 7, start), st), "index %d start", index)
		assert.True(t, p.ShouldAct(at(9, 7, start+11), st), "index %d end", index)
		assert.False(t, p.ShouldAct(at(9, 7, start+12), st), "index %d after", index)
		if start > 0 {
			assert.False(t, p.ShouldAct(at(9, 7, start-1), st), "index %d before", index)
		}
		assert.False(t, p.ShouldAct(at(9, 8, start), st), "index %d other minute", index)
	}
}

func TestShouldAct_UsesUTC(t *testing.T) {
	p := Policy{Kind: Staggered, Index: 0}
	st := State{LastCompletedWindow: 14}
	local := at(14, 10, 0).In(time.FixedZone("UTC+3", 3*3600))

	assert.False(t, p.ShouldAct(local, st))
}

func TestState_Complete(t *testing.T) {
	st := State{LastCompletedWindow: 3, Busy: true}

	assert.Equal(t, State{LastCompletedWindow: 4}, st.Complete(4, nil))
	assert.Equal(t, State{LastCompletedWindow: 3}, st.Complete(4, assert.AnError))
}

type recorder struct {
	calls    int
	err      error
	outcomes []Outcome
}

func (r *recorder) dispatch(context.Context) (string, error) {
	r.calls++

	return "fp", r.err
}

func (r *recorder) observe(o Outcome) {
	r.outcomes = append(r.outcomes, o)
}

func newScheduler(r *recorder, index int, now time.Time) (*Scheduler, *clock.Mock) {
	clk := clock.NewMock()
	clk.Set(now)

	return New(Policy{Kind: Staggered, Index: index}, 0, clk, r.dispatch, r.observe), clk
}

func TestTick_OncePerHour(t *testing.T) {
	r := &recorder{}
	s, clk := newScheduler(r, 1, at(14, 1, 0))
	ctx := context.Background()

	assert.False(t, s.Tick(ctx))
	clk.Add(2 * time.Minute)
	assert.True(t, s.Tick(ctx))
	clk.Add(5 * time.Second)
	assert.False(t, s.Tick(ctx))
	assert.False(t, s.Tick(ctx))
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, State{LastCompletedWindow: 14}, s.State())

	clk.Set(at(15, 5, 0))
	assert.True(t, s.Tick(ctx))
	assert.Equal(t, 2, r.calls)

	require.Len(t, r.outcomes, 2)
	assert.Equal(t, 14, r.outcomes[0].Hour)
	assert.Equal(t, "fp", r.outcomes[0].Detail)
	assert.NoError(t, r.outcomes[0].Err)
}

func TestTick_FailureLeavesWindowOpen(t *testing.T) {
	r := &recorder{err: &domain.RelayError{Err: domain.ErrNoPendingTransaction, Predecessor: "alice"}}
	s, clk := newScheduler(r, 1, at(14, 3, 0))
	ctx := context.Background()

	assert.True(t, s.Tick(ctx))
	assert.Equal(t, State{LastCompletedWindow: -1}, s.State())

	r.err = nil
	clk.Add(5 * time.Second)
	assert.True(t, s.Tick(ctx))
	assert.Equal(t, State{LastCompletedWindow: 14}, s.State())
	assert.Equal(t, 2, r.calls)
}

func TestIdle(t *testing.T) {
	assert.True(t, idle(errors.Wrap(domain.ErrNoOperations, "pool")))
	assert.True(t, idle(errors.Wrap(errors.Wrap(domain.ErrNoOperations, "pool"), "Originate")))
	assert.False(t, idle(nil))
	assert.False(t, idle(&domain.RelayError{Err: domain.ErrNoPendingTransaction}))
	assert.False(t, idle(&domain.CollaboratorError{Call: "get_accounts", Err: assert.AnError}))
}

func TestTick_NothingToDoKeepsWindowOpen(t *testing.T) {
	r := &recorder{err: errors.Wrap(domain.ErrNoOperations, "pool")}
	s, clk := newScheduler(r, 0, at(14, 5, 0))
	ctx := context.Background()

	assert.True(t, s.Tick(ctx))
	clk.Add(5 * time.Second)
	assert.True(t, s.Tick(ctx))
	assert.Equal(t, State{LastCompletedWindow: -1}, s.State())
	require.Len(t, r.outcomes, 2)
	assert.Equal(t, "no_operations", domain.ErrorKind(r.outcomes[1].Err))
}

func TestTick_RecoversPanic(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(at(10, 30, 0))
	var outcomes []Outcome
	s := New(Policy{Kind: Staggered}, 0, clk, func(context.Context) (string, error) {
		panic("boom")
	}, func(o Outcome) { outcomes = append(outcomes, o) })

	assert.True(t, s.Tick(context.Background()))
	require.Len(t, outcomes, 1)
	assert.ErrorContains(t, outcomes[0].Err, "boom")
	assert.False(t, s.State().Busy)
}

func TestTick_BusyGuard(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(at(10, 30, 0))
	var s *Scheduler
	var nested bool
	s = New(Policy{Kind: Staggered}, 0, clk, func(ctx context.Context) (string, error) {
		assert.True(t, s.State().Busy)
		nested = s.Tick(ctx)

		return "", nil
	}, nil)

	assert.True(t, s.Tick(context.Background()))
	assert.False(t, nested)
}

func TestNew_PeriodByKind(t *testing.T) {
	assert.Equal(t, DefaultStaggeredPeriod, New(Policy{Kind: Staggered}, 0, clock.NewMock(), nil, nil).period)
	assert.Equal(t, DefaultFixedPeriod, New(Policy{Kind: Fixed}, 0, clock.NewMock(), nil, nil).period)
	assert.Equal(t, time.Minute, New(Policy{Kind: Fixed}, time.Minute, clock.NewMock(), nil, nil).period)
}
