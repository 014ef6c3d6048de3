package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/TxnLab/ftstake/internal/lib/misc"
)

func GetDaemonCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "daemon",
		Aliases: []string{"d"},
		Usage:   "Run the ledger as a daemon, serving the http api and metrics",
		Before: func(ctx context.Context, cmd *cli.Command) error {
			return App.openLedger(true)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "Address to serve the api on (overrides the configured listen address)",
				Sources: cli.EnvVars("FTSTAKE_LISTEN"),
				Aliases: []string{"l"},
			},
			&cli.DurationFlag{
				Name:  "audit",
				Usage: "How often to audit account totals against the pool (0 to disable)",
				Value: defaultAuditInterval,
			},
		},
		Action: runAsDaemon,
	}
}

func runAsDaemon(ctx context.Context, cmd *cli.Command) error {
	var wg sync.WaitGroup

	listen := App.cfg.Listen
	if addr := cmd.String("listen"); addr != "" {
		listen = addr
	}

	// Create channel used by both the signal handler and server goroutines
	// to notify the main goroutine when to stop the server.
	errc := make(chan error)

	// Setup interrupt handler. This optional step configures the process so
	// that SIGINT and SIGTERM signals cause the services to stop gracefully.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	ctx, cancel := context.WithCancel(context.Background())

	newDaemon(listen, cmd.Duration("audit")).start(ctx, &wg, errc)

	misc.Infof(App.logger, "exiting (%v)", <-errc) // wait for termination signal

	// Send cancellation signal to the goroutines.
	cancel()
	misc.Infof(App.logger, "waiting on background tasks..")
	wg.Wait()

	misc.Infof(App.logger, "exited")
	return nil
}
