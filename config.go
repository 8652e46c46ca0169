package main

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/dmitrorezn/steem-multisig-relay/internal/assembler"
	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
	"github.com/dmitrorezn/steem-multisig-relay/internal/relay"
	"github.com/dmitrorezn/steem-multisig-relay/internal/schedule"
	"github.com/dmitrorezn/steem-multisig-relay/internal/slot"
	"github.com/dmitrorezn/steem-multisig-relay/internal/steem"
)

type RelayCfg struct {
	Account          string        `env:"ACCOUNT"`
	MultisigAccounts []string      `env:"MULTISIG_ACCOUNTS" envSeparator:" "`
	Mode             string        `env:"MODE" envDefault:"transfer"`
	Schedule         string        `env:"SCHEDULE" envDefault:"staggered"`
	TargetMinute     int           `env:"TARGET_MINUTE" envDefault:"5"`
	TickStaggered    time.Duration `env:"TICK_STAGGERED" envDefault:"5s"`
	TickFixed        time.Duration `env:"TICK_FIXED" envDefault:"1s"`
	ActiveKey        string        `env:"ACTIVE_KEY"`
	PostingKey       string        `env:"POSTING_KEY"`
	PoolAccount      string        `env:"POOL_ACCOUNT"`
	MarketAccount    string        `env:"MARKET_ACCOUNT"`
	TreasuryAccount  string        `env:"TREASURY_ACCOUNT"`
	BurnAccount      string        `env:"BURN_ACCOUNT" envDefault:"null"`
	TransferCap      string        `env:"TRANSFER_CAP" envDefault:"100"`
	TxTTL            time.Duration `env:"TX_TTL" envDefault:"3590s"`
	OrderTTL         time.Duration `env:"ORDER_TTL" envDefault:"1h"`
	OrderBookDepth   int           `env:"ORDER_BOOK_DEPTH" envDefault:"50"`
	ClockSkew        time.Duration `env:"CLOCK_SKEW" envDefault:"3s"`
	SlotTag          string        `env:"SLOT_TAG"`
	SlotBackend      string        `env:"SLOT_BACKEND" envDefault:"chain"`
	RedisAddr        string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	ChainID          string        `env:"CHAIN_ID" envDefault:"0000000000000000000000000000000000000000000000000000000000000000"`
}

// Validate reports every configuration problem at once.
func (c RelayCfg) Validate() error {
	var result *multierror.Error
	add := func(err error) {
		result = multierror.Append(result, err)
	}

	if c.Account == "" {
		add(errors.New("ACCOUNT is required"))
	}
	if len(c.MultisigAccounts) < 2 {
		add(errors.Errorf("MULTISIG_ACCOUNTS needs at least 2 accounts, got %d", len(c.MultisigAccounts)))
	}
	if c.Account != "" && len(c.MultisigAccounts) > 0 {
		if _, err := domain.NewParticipant(c.Account, c.MultisigAccounts); err != nil {
			add(errors.Wrap(err, "MULTISIG_ACCOUNTS"))
		}
	}

	switch domain.Mode(c.Mode) {
	case domain.ModeTransfer:
		if c.MarketAccount == "" || c.TreasuryAccount == "" {
			add(errors.New("MARKET_ACCOUNT and TREASURY_ACCOUNT are required in transfer mode"))
		}
	case domain.ModeBurn:
		if c.BurnAccount == "" {
			add(errors.New("BURN_ACCOUNT is required in burn mode"))
		}
	default:
		add(errors.Errorf("MODE must be transfer or burn, got %q", c.Mode))
	}

	switch schedule.Kind(c.Schedule) {
	case schedule.Staggered:
	case schedule.Fixed:
		if c.TargetMinute < 0 || c.TargetMinute > 59 {
			add(errors.Errorf("TARGET_MINUTE must be within 0..59, got %d", c.TargetMinute))
		}
		if len(c.MultisigAccounts) > schedule.MaxFixedParticipants {
			add(errors.Errorf("fixed schedule supports at most %d accounts, got %d",
				schedule.MaxFixedParticipants, len(c.MultisigAccounts)))
		}
	default:
		add(errors.Errorf("SCHEDULE must be staggered or fixed, got %q", c.Schedule))
	}

	if c.ActiveKey == "" {
		add(errors.New("ACTIVE_KEY is required"))
	}
	if c.PoolAccount == "" {
		add(errors.New("POOL_ACCOUNT is required"))
	}
	if transferCap, err := decimal.NewFromString(c.TransferCap); err != nil || !transferCap.IsPositive() {
		add(errors.Errorf("TRANSFER_CAP must be a positive amount, got %q", c.TransferCap))
	}
	if c.TxTTL <= 0 || c.OrderTTL <= 0 {
		add(errors.New("TX_TTL and ORDER_TTL must be positive"))
	}
	if c.ClockSkew < 0 {
		add(errors.New("CLOCK_SKEW must not be negative"))
	}

	switch c.SlotBackend {
	case slot.BackendChain:
		if c.PostingKey == "" {
			add(errors.New("POSTING_KEY is required with the chain slot backend"))
		}
	case slot.BackendRedis:
		if c.RedisAddr == "" {
			add(errors.New("REDIS_ADDR is required with the redis slot backend"))
		}
	default:
		add(errors.Errorf("SLOT_BACKEND must be chain or redis, got %q", c.SlotBackend))
	}

	return result.ErrorOrNil()
}

func (c RelayCfg) Participant() (domain.Participant, error) {
	return domain.NewParticipant(c.Account, c.MultisigAccounts)
}

func (c RelayCfg) Tag() string {
	if c.SlotTag != "" {
		return c.SlotTag
	}

	return domain.Mode(c.Mode).DefaultSlotTag()
}

func (c RelayCfg) Assembler() assembler.Config {
	return assembler.Config{
		Mode:        domain.Mode(c.Mode),
		Pool:        c.PoolAccount,
		Market:      c.MarketAccount,
		Treasury:    c.TreasuryAccount,
		Burn:        c.BurnAccount,
		TransferCap: decimal.RequireFromString(c.TransferCap),
		TTL:         c.TxTTL,
		OrderTTL:    c.OrderTTL,
	}
}

func (c RelayCfg) Relay() relay.Config {
	return relay.Config{
		Tag: c.Tag(),
		Policy: relay.Policy{
			Mode:     domain.Mode(c.Mode),
			Market:   c.MarketAccount,
			Treasury: c.TreasuryAccount,
			Burn:     c.BurnAccount,
		},
		ClockSkew: c.ClockSkew,
	}
}

func (c RelayCfg) Policy(index int) (schedule.Policy, time.Duration) {
	policy := schedule.Policy{
		Kind:         schedule.Kind(c.Schedule),
		Index:        index,
		TargetMinute: c.TargetMinute,
	}
	if policy.Kind == schedule.Fixed {
		return policy, c.TickFixed
	}

	return policy, c.TickStaggered
}

func (c RelayCfg) Keys() map[domain.Authority]string {
	return map[domain.Authority]string{
		domain.AuthorityActive:  c.ActiveKey,
		domain.AuthorityPosting: c.PostingKey,
	}
}

func (c RelayCfg) chainID() string {
	if c.ChainID == "" {
		return steem.MainnetChainID
	}

	return c.ChainID
}
