package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"github.com/TxnLab/ftstake/internal/lib/host"
	"github.com/TxnLab/ftstake/internal/lib/staking"
)

// LocalConfig is the ftstake.yaml written by 'init'.
type LocalConfig struct {
	// ContractID is the staking ledger's own account id.
	ContractID      string         `yaml:"contract_id"`
	OwnerID         string         `yaml:"owner_id"`
	TokenContractID string         `yaml:"token_contract_id"`
	Staking         staking.Config `yaml:"staking"`

	Genesis        time.Time     `yaml:"genesis"`
	BlockInterval  time.Duration `yaml:"block_interval"`
	BlocksPerEpoch uint64        `yaml:"blocks_per_epoch"`

	// Decimal amount charged per byte of account storage at registration
	StorageByteCost string `yaml:"storage_byte_cost"`
	// Token decimals, for display only
	Decimals uint8 `yaml:"decimals"`

	Listen         string `yaml:"listen"`
	AllowedOrigins string `yaml:"allowed_origins"`
}

func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		ContractID:      "stake.near",
		TokenContractID: "token.near",
		Staking:         staking.DefaultConfig(),
		Genesis:         time.Now().UTC().Truncate(time.Second),
		BlockInterval:   time.Second,
		BlocksPerEpoch:  43_200,
		StorageByteCost: "10000000000000000000",
		Decimals:        18,
		Listen:          ":8080",
		AllowedOrigins:  "*",
	}
}

func (c LocalConfig) Validate() error {
	for _, id := range []string{c.ContractID, c.OwnerID, c.TokenContractID} {
		if err := staking.ValidateAccountID(id); err != nil {
			return err
		}
	}
	if c.BlockInterval <= 0 {
		return errors.New("block_interval must be positive")
	}
	if c.BlocksPerEpoch == 0 {
		return errors.New("blocks_per_epoch must be positive")
	}
	if _, err := c.storageByteCost(); err != nil {
		return err
	}
	return c.Staking.Validate()
}

func (c LocalConfig) storageByteCost() (uint256.Int, error) {
	if c.StorageByteCost == "" {
		return uint256.Int{}, nil
	}
	cost, err := uint256.FromDecimal(c.StorageByteCost)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("storage_byte_cost: %w", err)
	}
	return *cost, nil
}

func (c LocalConfig) Clock() *host.Clock {
	return host.NewClock(c.Genesis, c.BlockInterval, c.BlocksPerEpoch)
}

// ConfigFilename is the default config path, under the user's config dir.
func ConfigFilename() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, "ftstake", "ftstake.yaml"), nil
}

func SaveConfig(cfgName string, cfg LocalConfig) error {
	// Save into a temp file first, replacing the config file only if successfully written.
	if err := os.MkdirAll(filepath.Dir(cfgName), 0775); err != nil {
		return fmt.Errorf("error making directory:%s, error:%w", filepath.Dir(cfgName), err)
	}
	temp, err := os.CreateTemp(filepath.Dir(cfgName), filepath.Base(cfgName)+".*")
	if err != nil {
		return err
	}
	encoder := yaml.NewEncoder(temp)
	if err = encoder.Encode(cfg); err == nil {
		err = encoder.Close()
	}
	if err != nil {
		_ = temp.Close()
		_ = os.Remove(temp.Name())
		return fmt.Errorf("error saving configuration: %w", err)
	}
	if err = temp.Close(); err != nil {
		return err
	}
	if err = os.Rename(temp.Name(), cfgName); err != nil {
		return err
	}
	slog.Info("configuration saved", "file", cfgName)
	return nil
}

func LoadConfig(cfgName string) (LocalConfig, error) {
	file, err := os.Open(cfgName)
	if err != nil {
		return LocalConfig{}, err
	}
	defer file.Close()

	var cfg LocalConfig
	if err = yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return LocalConfig{}, fmt.Errorf("error reading %s: %w", cfgName, err)
	}
	return cfg, cfg.Validate()
}
