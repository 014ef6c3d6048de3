package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func GetTokenCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "token",
		Aliases: []string{"t"},
		Usage:   "Manage balances of the staked token",
		Before:  requireLedger,
		Commands: []*cli.Command{
			{
				Name:      "balance",
				Aliases:   []string{"b"},
				Usage:     "Show the token balance of an account",
				ArgsUsage: "<account id>",
				Action:    TokenBalance,
			},
			{
				Name:      "mint",
				Usage:     "Mint tokens to an account.  Mint to the contract account to fund rewards",
				ArgsUsage: "<account id> <amount>",
				Action:    TokenMint,
			},
			{
				Name:      "transfer",
				Usage:     "Transfer tokens between accounts",
				ArgsUsage: "<sender id> <receiver id> <amount>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "memo",
						Usage: "Memo recorded with the transfer",
					},
				},
				Action: TokenTransfer,
			},
		},
	}
}

func TokenBalance(ctx context.Context, cmd *cli.Command) error {
	id, err := accountArg(cmd)
	if err != nil {
		return err
	}
	balance, err := App.tokens.BalanceOf(id)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", id, formatted(&balance))
	return nil
}

func TokenMint(ctx context.Context, cmd *cli.Command) error {
	id, err := accountArg(cmd)
	if err != nil {
		return err
	}
	amount, err := amountArg(cmd, 1)
	if err != nil {
		return err
	}
	balance, err := App.tokens.Mint(id, amount)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", id, formatted(&balance))
	return nil
}

func TokenTransfer(ctx context.Context, cmd *cli.Command) error {
	sender, err := accountArg(cmd)
	if err != nil {
		return err
	}
	receiver := cmd.Args().Get(1)
	if receiver == "" {
		return cli.Exit("receiver must be specified", 1)
	}
	amount, err := amountArg(cmd, 2)
	if err != nil {
		return err
	}
	if err = App.tokens.Transfer(ctx, sender, receiver, amount, cmd.String("memo")); err != nil {
		return err
	}
	fmt.Printf("transferred %s from %s to %s\n", formatted(amount), sender, receiver)
	return nil
}
