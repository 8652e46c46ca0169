package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/caarlos0/env"
	logging "github.com/ipfs/go-log/v2"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/raulk/clock"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
	"github.com/dmitrorezn/steem-multisig-relay/internal/metrics"
	"github.com/dmitrorezn/steem-multisig-relay/internal/oracle"
	"github.com/dmitrorezn/steem-multisig-relay/internal/slot"
	"github.com/dmitrorezn/steem-multisig-relay/internal/steem"
)

var log = logging.Logger("multisig-relay")

type App struct {
	cfg Config
}

type Config struct {
	RelayCfg
	steem.ClientCfg
	DiskStoreCfg
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	app := new(App)
	cliApp := &cli.App{
		Name:  "multisig-relay",
		Usage: "co-sign and relay a multisig transaction along a fixed chain of Steem accounts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file to load before reading the environment",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "overrides LOG_LEVEL",
			},
		},
		Before: app.load,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run the participant until interrupted",
				Action: app.run,
			},
			{
				Name:  "quote",
				Usage: "print the minimum STEEM to receive for selling an SBD amount",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "amount", Required: true, Usage: "SBD to sell, e.g. 150.000"},
				},
				Action: app.quote,
			},
			{
				Name:  "history",
				Usage: "print the journal of a stopped relay; a running relay serves it on GET /history",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "flush", Usage: "delete the journal after printing"},
				},
				Action: app.history,
			},
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		log.Errorw("exit", "err", err)
		os.Exit(1)
	}
}

func (app *App) load(c *cli.Context) error {
	if err := godotenv.Load(c.String("env-file")); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return errors.Wrap(err, "Load")
	}
	if err := env.Parse(&app.cfg); err != nil {
		return errors.Wrap(err, "Parse")
	}
	if err := env.Parse(&app.cfg.RelayCfg); err != nil {
		return errors.Wrap(err, "Parse RelayCfg")
	}
	if err := env.Parse(&app.cfg.ClientCfg); err != nil {
		return errors.Wrap(err, "Parse ClientCfg")
	}
	if err := env.Parse(&app.cfg.DiskStoreCfg); err != nil {
		return errors.Wrap(err, "Parse DiskStoreCfg")
	}

	level := app.cfg.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	lvl, err := logging.LevelFromString(level)
	if err != nil {
		return errors.Wrap(err, "LevelFromString")
	}
	logging.SetAllLoggers(lvl)

	return nil
}

func (app *App) slots(client *steem.Client, keys *steem.Keyring, clk clock.Clock) (slot.Store, func() error, error) {
	switch app.cfg.SlotBackend {
	case slot.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})

		return slot.NewRedisStore(rdb), rdb.Close, nil
	case slot.BackendChain:
		return slot.NewChainStore(client, keys, clk), func() error { return nil }, nil
	}

	return nil, nil, errors.Errorf("unknown slot backend %q", app.cfg.SlotBackend)
}

func (app *App) run(c *cli.Context) error {
	if err := app.cfg.Validate(); err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clk := clock.New()
	client := steem.NewClient(app.cfg.ClientCfg)
	keys, err := steem.NewKeyring(app.cfg.chainID(), app.cfg.Keys())
	if err != nil {
		return err
	}
	slots, closeSlots, err := app.slots(client, keys, clk)
	if err != nil {
		return err
	}
	defer closeSlots()

	store, err := NewDB(app.cfg.DiskStoreCfg, journalBucket)
	if err != nil {
		return err
	}
	defer store.Close()

	recorder := metrics.NewRecorder()
	svc, err := NewService(app.cfg.RelayCfg, client, keys, slots, store, recorder, clk)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", status(svc))
	mux.HandleFunc("/history", history(svc))
	mux.Handle("/metrics", recorder.Handler())

	server := http.Server{
		Handler:           mux,
		Addr:              app.cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg := sync.WaitGroup{}
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("ListenAndServe", "err", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Infow("started", "http", app.cfg.HTTPAddr, "node", app.cfg.NodeURL)
	svc.Run(ctx)
	log.Infow("stopped")

	return nil
}

func (app *App) quote(c *cli.Context) error {
	amount, err := decimal.NewFromString(c.String("amount"))
	if err != nil {
		return errors.Wrap(err, "amount")
	}
	client := steem.NewClient(app.cfg.ClientCfg)
	receive, err := oracle.New(client, app.cfg.OrderBookDepth).Quote(c.Context, amount)
	if err != nil {
		return err
	}
	sell := domain.NewAsset(amount, domain.StableSymbol)
	_, err = fmt.Fprintf(c.App.Writer, "%s -> %s\n", sell, domain.NewAsset(receive, domain.NativeSymbol))

	return err
}

func (app *App) history(c *cli.Context) error {
	open := NewReadOnlyDB
	if c.Bool("flush") {
		open = NewDB
	}
	store, err := open(app.cfg.DiskStoreCfg, journalBucket)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(c.Context)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	for _, entry := range entries {
		if err = enc.Encode(entry); err != nil {
			return err
		}
	}
	if c.Bool("flush") {
		return store.Flush(c.Context)
	}

	return nil
}
