package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/raulk/clock"

	"github.com/dmitrorezn/steem-multisig-relay/internal/assembler"
	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
	"github.com/dmitrorezn/steem-multisig-relay/internal/metrics"
	"github.com/dmitrorezn/steem-multisig-relay/internal/oracle"
	"github.com/dmitrorezn/steem-multisig-relay/internal/relay"
	"github.com/dmitrorezn/steem-multisig-relay/internal/schedule"
	"github.com/dmitrorezn/steem-multisig-relay/internal/slot"
)

type Journal interface {
	Insert(ctx context.Context, entries ...*domain.Entry) error
	List(ctx context.Context) ([]*domain.Entry, error)
	Flush(ctx context.Context) error
}

// Service runs one chain participant: the scheduler decides when, the
// assembler or the coordinator does the work depending on role.
type Service struct {
	cfg         RelayCfg
	self        domain.Participant
	journal     Journal
	metrics     *metrics.Recorder
	assembler   *assembler.Assembler
	coordinator *relay.Coordinator
	scheduler   *schedule.Scheduler
}

func NewService(
	cfg RelayCfg,
	ledger domain.Ledger,
	signer domain.Signer,
	slots slot.Store,
	journal Journal,
	recorder *metrics.Recorder,
	clk clock.Clock,
) (*Service, error) {
	self, err := cfg.Participant()
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:     cfg,
		self:    self,
		journal: journal,
		metrics: recorder,
	}
	switch self.Role() {
	case domain.RoleHead:
		quoter := oracle.New(ledger, cfg.OrderBookDepth)
		s.assembler = assembler.New(cfg.Assembler(), self, cfg.Tag(), ledger, quoter, signer, slots, clk)
	default:
		s.coordinator = relay.New(cfg.Relay(), self, slots, ledger, signer, clk)
	}
	policy, period := cfg.Policy(self.Index)
	s.scheduler = schedule.New(policy, period, clk, s.Dispatch, s.Observe)

	log.Infow("participant configured",
		"identity", self.Identity,
		"index", self.Index,
		"role", self.Role().String(),
		"mode", cfg.Mode,
		"schedule", cfg.Schedule,
		"slot", cfg.Tag(),
	)

	return s, nil
}

func (s *Service) Run(ctx context.Context) {
	s.scheduler.Run(ctx)
}

// Dispatch performs this participant's action once and returns the
// fingerprint of the transaction it handled.
func (s *Service) Dispatch(ctx context.Context) (string, error) {
	if s.self.Role() == domain.RoleHead {
		tx, err := s.assembler.Originate(ctx)
		if err != nil {
			return "", errors.Wrap(err, "Originate")
		}

		return tx.Fingerprint(), nil
	}
	res, err := s.coordinator.Relay(ctx)
	if err != nil {
		return "", errors.Wrap(err, "Relay")
	}

	return res.Tx.Fingerprint(), nil
}

// Observe records a finished dispatch in metrics and the journal.
func (s *Service) Observe(outcome schedule.Outcome) {
	role := s.self.Role().String()
	status := domain.ErrorKind(outcome.Err)
	s.metrics.Dispatch(role, status, outcome.FinishedAt.Sub(outcome.StartedAt).Seconds())
	if outcome.Err == nil {
		s.metrics.Completed(outcome.Hour)
	}

	entry := &domain.Entry{
		Identity:    s.self.Identity,
		Hour:        outcome.Hour,
		Mode:        domain.Mode(s.cfg.Mode),
		Role:        role,
		Status:      status,
		Fingerprint: outcome.Detail,
		StartedAt:   outcome.StartedAt,
		FinishedAt:  outcome.FinishedAt,
	}
	if outcome.Err != nil {
		entry.Error = outcome.Err.Error()
	}
	if err := s.journal.Insert(context.Background(), entry); err != nil {
		log.Warnw("journal insert failed", "err", err)
	}
}

type Status struct {
	Identity string         `json:"identity"`
	Index    int            `json:"index"`
	Role     string         `json:"role"`
	Mode     string         `json:"mode"`
	Schedule string         `json:"schedule"`
	Slot     string         `json:"slot"`
	Chain    []string       `json:"chain"`
	State    schedule.State `json:"state"`
}

func (s *Service) Status() Status {
	return Status{
		Identity: s.self.Identity,
		Index:    s.self.Index,
		Role:     s.self.Role().String(),
		Mode:     s.cfg.Mode,
		Schedule: s.cfg.Schedule,
		Slot:     s.cfg.Tag(),
		Chain:    s.self.Chain,
		State:    s.scheduler.State(),
	}
}

func (s *Service) List(ctx context.Context) ([]*domain.Entry, error) {
	return s.journal.List(ctx)
}
