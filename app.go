package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/TxnLab/ftstake/internal/lib/host"
	"github.com/TxnLab/ftstake/internal/lib/misc"
	"github.com/TxnLab/ftstake/internal/lib/staking"
	"github.com/TxnLab/ftstake/internal/lib/store"
	"github.com/TxnLab/ftstake/internal/lib/token"
)

var logLevel = new(slog.LevelVar) // Info by default

func initApp() *StakeApp {
	log.SetFlags(0)
	var logger *slog.Logger
	if term.IsTerminal(int(os.Stdout.Fd())) {
		// Are we running on something where output is a tty - so we're being run as CLI vs as a daemon
		logger = slog.New(misc.NewMinimalHandler(os.Stdout,
			misc.MinimalHandlerOptions{SlogOpts: slog.HandlerOptions{Level: logLevel, AddSource: true}}))
	} else {
		// not on console - output as json, but change json key names to be more compatible w/ what google logging
		// expects
		opts := &slog.HandlerOptions{
			AddSource: true,
			Level:     logLevel,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.MessageKey {
					a.Key = "message"
				} else if a.Key == slog.LevelKey && len(groups) == 0 {
					a.Key = "severity"
				}
				return a
			},
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	slog.SetDefault(logger)
	if os.Getenv("DEBUG") == "1" {
		logLevel.Set(slog.LevelDebug)
	}

	misc.LoadEnvSettings(logger)

	// We initialize our wrapper instance first, so we can call its methods in the 'Before' lambda func
	// in initialization of cli App instance.
	appConfig := &StakeApp{logger: logger}

	appConfig.cliCmd = &cli.Command{
		Name:    "ftstake",
		Usage:   "Fungible token staking ledger - administration tool and background daemon",
		Version: misc.GetVersionInfo(),
		Before: func(ctx context.Context, cmd *cli.Command) error {
			return appConfig.initSettings(ctx, cmd)
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			return appConfig.close()
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "envfile",
				Usage:   "env file to load",
				Sources: cli.EnvVars("FTSTAKE_ENVFILE"),
				Aliases: []string{"e"},
			},
			&cli.StringFlag{
				Name:        "config",
				Usage:       "Path of the ftstake.yaml ledger configuration (defaults to the user config dir)",
				Sources:     cli.EnvVars("FTSTAKE_CONFIG"),
				Aliases:     []string{"c"},
				Destination: &appConfig.cfgPath,
			},
			&cli.StringFlag{
				Name:        "datadir",
				Usage:       "Directory of the ledger database",
				Value:       "ftstake-data",
				Sources:     cli.EnvVars("FTSTAKE_DATADIR"),
				Aliases:     []string{"d"},
				Destination: &appConfig.dataDir,
			},
		},
		Commands: []*cli.Command{
			GetInitCmdOpts(),
			GetDaemonCmdOpts(),
			GetAccountCmdOpts(),
			GetPoolCmdOpts(),
			GetTokenCmdOpts(),
		},
	}
	return appConfig
}

type StakeApp struct {
	cliCmd *cli.Command
	logger *slog.Logger

	cfg    LocalConfig
	store  *store.Store
	ledger *staking.Ledger
	tokens *token.Ledger
	host   *host.Host

	// just here for flag bootstrapping destination
	cfgPath string
	dataDir string
}

func (ac *StakeApp) initSettings(ctx context.Context, cmd *cli.Command) error {
	if envfile := cmd.String("envfile"); envfile != "" {
		if err := misc.LoadEnvFile(ac.logger, envfile); err != nil {
			return err
		}
	}
	if ac.cfgPath == "" {
		cfgPath, err := ConfigFilename()
		if err != nil {
			return err
		}
		ac.cfgPath = cfgPath
	}
	return nil
}

// openStore opens the ledger database, creating it if not there.
func (ac *StakeApp) openStore() error {
	if ac.store != nil {
		return nil
	}
	if err := os.MkdirAll(ac.dataDir, 0775); err != nil {
		return err
	}
	s, err := store.New(filepath.Join(ac.dataDir, "ledger"), store.Options{})
	if err != nil {
		return err
	}
	ac.store = s
	return nil
}

// openLedger loads the configuration and contract record and starts hosting the ledger.
func (ac *StakeApp) openLedger(async bool) error {
	cfg, err := LoadConfig(ac.cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ledger not configured, run 'init' first: %w", err)
	}
	if err != nil {
		return err
	}
	ac.cfg = cfg
	if err = ac.openStore(); err != nil {
		return err
	}
	contract, err := ac.store.Contract()
	if err != nil {
		return err
	}
	ac.ledger, err = staking.New(ac.logger, cfg.ContractID, ac.store, contract)
	if err != nil {
		return err
	}
	byteCost, _ := cfg.storageByteCost()
	ac.tokens = token.New(ac.logger, cfg.TokenContractID, ac.store)
	ac.host = host.New(ac.logger, ac.ledger, ac.tokens, ac.store, cfg.Clock(), host.Config{
		ContractID:      cfg.ContractID,
		StorageByteCost: byteCost,
		Async:           async,
	})
	misc.Debugf(ac.logger, "ledger %s loaded, version:%d, %s", cfg.ContractID, contract.Version, contract.Config)
	return nil
}

func requireLedger(ctx context.Context, cmd *cli.Command) error {
	return App.openLedger(false)
}

func (ac *StakeApp) close() error {
	if ac.host != nil {
		ac.host.Close()
	}
	if ac.store != nil {
		return ac.store.Close()
	}
	return nil
}
