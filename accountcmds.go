package main

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/holiman/uint256"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/ftstake/internal/lib/host"
	"github.com/TxnLab/ftstake/internal/lib/misc"
	"github.com/TxnLab/ftstake/internal/lib/staking"
)

func GetAccountCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "account",
		Aliases: []string{"a"},
		Usage:   "Register, stake, unstake, harvest and withdraw for a staker account",
		Before:  requireLedger,
		Commands: []*cli.Command{
			{
				Name:      "register",
				Usage:     "Register a staker account, paying for its storage",
				ArgsUsage: "<account id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "deposit",
						Usage: "Deposit attached to cover storage (base units). Defaults to exactly the storage cost",
					},
				},
				Action: AccountRegister,
			},
			{
				Name:      "show",
				Aliases:   []string{"s"},
				Usage:     "Show the staking state of an account",
				ArgsUsage: "<account id>",
				Action:    AccountShow,
			},
			{
				Name:      "stake",
				Usage:     "Transfer tokens from the account to the ledger and stake them",
				ArgsUsage: "<account id> <amount>",
				Action:    AccountStake,
			},
			{
				Name:      "unstake",
				Usage:     "Move staked tokens into the unstaked balance. They can be withdrawn once unlocked",
				ArgsUsage: "<account id> <amount>",
				Action:    AccountUnstake,
			},
			{
				Name:      "harvest",
				Usage:     "Pay out the account's accrued reward",
				ArgsUsage: "<account id>",
				Action:    AccountHarvest,
			},
			{
				Name:      "withdraw",
				Usage:     "Pay out the account's unlocked unstaked balance",
				ArgsUsage: "<account id>",
				Action:    AccountWithdraw,
			},
		},
	}
}

func accountArg(cmd *cli.Command) (string, error) {
	id := cmd.Args().Get(0)
	if id == "" {
		return "", cli.Exit("account id must be specified", 1)
	}
	if err := staking.ValidateAccountID(id); err != nil {
		return "", cli.Exit(err, 1)
	}
	return id, nil
}

func amountArg(cmd *cli.Command, idx int) (*uint256.Int, error) {
	str := cmd.Args().Get(idx)
	if str == "" {
		return nil, cli.Exit("amount must be specified", 1)
	}
	amount, err := uint256.FromDecimal(str)
	if err != nil {
		return nil, cli.Exit(fmt.Errorf("invalid amount %q: %w", str, err), 1)
	}
	return amount, nil
}

func formatted(amount *uint256.Int) string {
	return misc.FormattedAmount(amount, App.cfg.Decimals)
}

func AccountRegister(ctx context.Context, cmd *cli.Command) error {
	id, err := accountArg(cmd)
	if err != nil {
		return err
	}
	deposit, err := registrationDeposit(id, cmd.String("deposit"))
	if err != nil {
		return err
	}
	refund, err := App.host.StorageDeposit(host.Call{Caller: id, Deposit: *deposit}, id)
	if err != nil {
		return err
	}
	fmt.Printf("Account %s registered, refunded %s\n", id, refund.Dec())
	return nil
}

// registrationDeposit is the explicit deposit, or enough to store a new account at any block height.
// The excess is refunded.
func registrationDeposit(id string, explicit string) (*uint256.Int, error) {
	if explicit != "" {
		return uint256.FromDecimal(explicit)
	}
	byteCost, err := App.cfg.storageByteCost()
	if err != nil {
		return nil, err
	}
	size, err := App.store.StorageSize(id, staking.NewAccount(math.MaxUint64))
	if err != nil {
		return nil, err
	}
	deposit := new(uint256.Int).Mul(&byteCost, uint256.NewInt(size))
	if deposit.IsZero() {
		deposit.SetOne()
	}
	return deposit, nil
}

func AccountShow(ctx context.Context, cmd *cli.Command) error {
	id, err := accountArg(cmd)
	if err != nil {
		return err
	}
	view, err := App.host.AccountInfo(id)
	if err != nil {
		return err
	}
	fmt.Print(view.String())
	balance, err := App.tokens.BalanceOf(id)
	if err != nil {
		return err
	}
	fmt.Printf("Token balance: %s\n", formatted(&balance))
	return nil
}

func AccountStake(ctx context.Context, cmd *cli.Command) error {
	id, err := accountArg(cmd)
	if err != nil {
		return err
	}
	amount, err := amountArg(cmd, 1)
	if err != nil {
		return err
	}
	staked, err := App.host.Stake(ctx, id, amount, "stake")
	if err != nil {
		return err
	}
	fmt.Printf("Staked %s for %s\n", formatted(&staked), id)
	return nil
}

func AccountUnstake(ctx context.Context, cmd *cli.Command) error {
	id, err := accountArg(cmd)
	if err != nil {
		return err
	}
	amount, err := amountArg(cmd, 1)
	if err != nil {
		return err
	}
	if err = App.host.Unstake(host.OneFeeUnit(id), amount); err != nil {
		return err
	}
	view, err := App.host.AccountInfo(id)
	if err != nil {
		return err
	}
	fmt.Printf("Unstaked %s for %s, available for withdrawal at epoch %d\n", formatted(amount), id, view.UnstakeAvailableEpoch)
	return nil
}

func AccountHarvest(ctx context.Context, cmd *cli.Command) error {
	id, err := accountArg(cmd)
	if err != nil {
		return err
	}
	receipt, err := App.host.Harvest(ctx, host.OneFeeUnit(id))
	if err != nil {
		return err
	}
	return reportReceipt(ctx, receipt)
}

func AccountWithdraw(ctx context.Context, cmd *cli.Command) error {
	id, err := accountArg(cmd)
	if err != nil {
		return err
	}
	receipt, err := App.host.Withdraw(ctx, host.OneFeeUnit(id))
	if err != nil {
		return err
	}
	return reportReceipt(ctx, receipt)
}

func reportReceipt(ctx context.Context, receipt *host.Receipt) error {
	outcome, err := receipt.Wait(ctx)
	if err != nil {
		return err
	}
	switch {
	case outcome.Err != nil && errors.Is(outcome.Err, staking.ErrHarvestTransferFailed):
		return cli.Exit(fmt.Errorf("%s of %s to %s failed, reward kept for a later harvest", receipt.Kind, formatted(&receipt.Requested), receipt.AccountID), 1)
	case outcome.Err != nil:
		return outcome.Err
	case !outcome.Delivered:
		return cli.Exit(fmt.Errorf("%s of %s to %s failed, balance restored", receipt.Kind, formatted(&receipt.Requested), receipt.AccountID), 1)
	}
	fmt.Printf("%s #%d paid %s to %s\n", receipt.Kind, receipt.ID, formatted(&outcome.Paid), receipt.AccountID)
	return nil
}
