package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/ftstake/internal/lib/misc"
	"github.com/TxnLab/ftstake/internal/lib/staking"
)

func GetInitCmdOpts() *cli.Command {
	return &cli.Command{
		Name:   "init",
		Usage:  "Create the ledger configuration and initialize the staking contract - should only be done ONCE !",
		Action: InitLedger,
	}
}

func InitLedger(ctx context.Context, cmd *cli.Command) error {
	_, err := LoadConfig(App.cfgPath)
	if err == nil {
		return cli.Exit(fmt.Errorf("ledger configuration already defined in %s", App.cfgPath), 1)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return cli.Exit(err, 1)
	}
	cfg, err := DefineLedger()
	if err != nil {
		return err
	}
	if err = App.openStore(); err != nil {
		return err
	}
	_, height, _ := cfg.Clock().Now()
	contract, err := staking.NewContract(cfg.OwnerID, cfg.TokenContractID, cfg.Staking, height)
	if err != nil {
		return err
	}
	if err = App.store.InitContract(contract); err != nil {
		return err
	}
	if err = SaveConfig(App.cfgPath, cfg); err != nil {
		return err
	}
	misc.Infof(App.logger, "staking contract %s initialized at block:%d, %s", cfg.ContractID, height, cfg.Staking)
	return nil
}

func DefineLedger() (LocalConfig, error) {
	var (
		cfg    = DefaultLocalConfig()
		result string
		err    error
	)
	result, err = yesNo("Ledger not configured.  Create brand new staking ledger")
	if result != "y" {
		return cfg, fmt.Errorf("aborted: %w", err)
	}
	if cfg.ContractID, err = getAccountID("Enter the account id of the staking contract", cfg.ContractID); err != nil {
		return cfg, err
	}
	if cfg.OwnerID, err = getAccountID("Enter the account id of the 'owner' of the staking contract", ""); err != nil {
		return cfg, err
	}
	if cfg.TokenContractID, err = getAccountID("Enter the account id of the staked token contract", cfg.TokenContractID); err != nil {
		return cfg, err
	}
	rewardNum, err := getUint("Enter the reward rate numerator (per block, per staked unit)", uint64(cfg.Staking.RewardNum), 0, 1<<32-1)
	if err != nil {
		return cfg, err
	}
	cfg.Staking.RewardNum = uint32(rewardNum)
	if cfg.Staking.RewardDenom, err = getUint("Enter the reward rate denominator", cfg.Staking.RewardDenom, 1, 1<<64-1); err != nil {
		return cfg, err
	}
	if cfg.Staking.NumEpochUnlock, err = getUint("Enter the number of epochs unstaked tokens stay locked", cfg.Staking.NumEpochUnlock, 0, 1_000); err != nil {
		return cfg, err
	}
	blockSecs, err := getUint("Enter the block interval (in seconds)", uint64(cfg.BlockInterval/time.Second), 1, 3600)
	if err != nil {
		return cfg, err
	}
	cfg.BlockInterval = time.Duration(blockSecs) * time.Second
	if cfg.BlocksPerEpoch, err = getUint("Enter the number of blocks per epoch", cfg.BlocksPerEpoch, 1, 1<<32); err != nil {
		return cfg, err
	}
	if cfg.StorageByteCost, err = getAmount("Enter the storage cost per byte (in base units)", cfg.StorageByteCost); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func getUint(prompt string, defVal uint64, minVal uint64, maxVal uint64) (uint64, error) {
	validate := func(input string) error {
		value, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return err
		}
		if value < minVal || value > maxVal {
			return fmt.Errorf("value must be between %d and %d", minVal, maxVal)
		}
		return nil
	}
	result, err := (&promptui.Prompt{
		Label:    prompt,
		Default:  strconv.FormatUint(defVal, 10),
		Validate: validate,
	}).Run()
	if err != nil {
		return 0, err
	}
	value, _ := strconv.ParseUint(result, 10, 64)
	return value, nil
}

func getAmount(prompt string, defVal string) (string, error) {
	return (&promptui.Prompt{
		Label:   prompt,
		Default: defVal,
		Validate: func(s string) error {
			_, err := uint256.FromDecimal(s)
			return err
		},
	}).Run()
}

func getAccountID(prompt string, defVal string) (string, error) {
	return (&promptui.Prompt{
		Label:    prompt,
		Default:  defVal,
		Validate: staking.ValidateAccountID,
	}).Run()
}

func yesNo(prompt string) (string, error) {
	return (&promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
	}).Run()
}
