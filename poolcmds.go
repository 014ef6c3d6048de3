package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/holiman/uint256"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/ftstake/internal/lib/host"
	"github.com/TxnLab/ftstake/internal/lib/misc"
)

func GetPoolCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "pool",
		Aliases: []string{"p"},
		Usage:   "Inspect and administer the staking pool",
		Commands: []*cli.Command{
			{
				Name:    "info",
				Aliases: []string{"i"},
				Usage:   "Show the pool totals",
				Before:  requireLedger,
				Action:  PoolInfo,
			},
			{
				Name:    "ledger",
				Aliases: []string{"l"},
				Usage:   "List every registered account of the pool",
				Before:  requireLedger,
				Action:  PoolLedger,
			},
			{
				Name:   "pause",
				Usage:  "Pause the pool, freezing all reward accrual.  There is no resume !",
				Before: requireLedger,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Don't prompt for confirmation",
					},
				},
				Action: PoolPause,
			},
			{
				Name:   "audit",
				Usage:  "Check the account balances add up to the pool totals",
				Before: requireLedger,
				Flags: []cli.Flag{
					&cli.UintFlag{
						Name:  "parallel",
						Usage: "Number of accounts to read in parallel",
						Value: auditParallelism,
					},
				},
				Action: PoolAudit,
			},
			{
				Name:  "migrate",
				Usage: "Upgrade a legacy contract record to the current layout",
				Before: func(ctx context.Context, cmd *cli.Command) error {
					// the contract record can't be loaded until migrated, so only the store is opened
					cfg, err := LoadConfig(App.cfgPath)
					if err != nil {
						return err
					}
					App.cfg = cfg
					return App.openStore()
				},
				Action: PoolMigrate,
			},
		},
	}
}

func PoolInfo(ctx context.Context, cmd *cli.Command) error {
	view, err := App.host.PoolInfo()
	if err != nil {
		return err
	}
	_, height, epoch := App.host.Clock().Now()
	contract := App.ledger.Contract()

	out := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(out, "Contract:\t%s (version %d)\t\n", App.ledger.ContractID(), App.ledger.Version())
	fmt.Fprintf(out, "Owner:\t%s\t\n", contract.OwnerID)
	fmt.Fprintf(out, "Token:\t%s\t\n", contract.TokenContractID)
	fmt.Fprintf(out, "Config:\t%s\t\n", contract.Config)
	fmt.Fprintf(out, "Block / Epoch:\t%d / %d\t\n", height, epoch)
	fmt.Fprintf(out, "Stakers:\t%d\t\n", view.TotalStaker)
	fmt.Fprintf(out, "Total Staked:\t%s\t\n", formattedDec(view.TotalStakeBalance))
	fmt.Fprintf(out, "Total Reward:\t%s\t\n", formattedDec(view.TotalReward))
	fmt.Fprintf(out, "Total Paid:\t%s\t\n", formattedDec(view.TotalPaidReward))
	if block, paused := contract.Pool.Pause.FrozenBlock(); paused {
		fmt.Fprintf(out, "Paused:\tat block %d\t\n", block)
	}
	balance, err := App.tokens.BalanceOf(App.ledger.ContractID())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Contract Balance:\t%s\t\n", formatted(&balance))
	return out.Flush()
}

func PoolLedger(ctx context.Context, cmd *cli.Command) error {
	ids, err := App.store.AccountIDs()
	if err != nil {
		return err
	}
	slices.Sort(ids)

	out := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(out, "Account\tMembership\tStaked\tReward\tUnstaked\tAvail Epoch\t")
	for _, id := range ids {
		view, err := App.host.AccountInfo(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\t%d\t\n", id, view.Membership, formattedDec(view.StakeBalance),
			formattedDec(view.Reward), formattedDec(view.UnstakeBalance), view.UnstakeAvailableEpoch)
	}
	return out.Flush()
}

func PoolPause(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		if result, _ := yesNo("Pause the staking pool permanently"); result != "y" {
			return cli.Exit("aborted", 1)
		}
	}
	if err := App.host.Pause(host.Call{Caller: App.cfg.OwnerID}); err != nil {
		return err
	}
	_, height, _ := App.host.Clock().Now()
	misc.Warnf(App.logger, "staking pool %s paused at block %d", App.cfg.ContractID, height)
	return nil
}

func PoolAudit(ctx context.Context, cmd *cli.Command) error {
	report, err := App.host.Audit(int(cmd.Uint("parallel")))
	if err != nil {
		return err
	}
	fmt.Println(report)
	if !report.StakeConsistent() {
		return cli.Exit(errors.New("account stake totals do not match the pool"), 1)
	}
	return nil
}

func PoolMigrate(ctx context.Context, cmd *cli.Command) error {
	migrated, err := App.store.MigrateContract()
	if err != nil {
		return err
	}
	if !migrated {
		fmt.Println("contract record is already current")
		return nil
	}
	misc.Infof(App.logger, "contract record of %s migrated", App.cfg.ContractID)
	return nil
}

// formattedDec formats a decimal string amount, as returned in the views.
func formattedDec(dec string) string {
	amount, err := uint256.FromDecimal(dec)
	if err != nil {
		return dec
	}
	return formatted(amount)
}
