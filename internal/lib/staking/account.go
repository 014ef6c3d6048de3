package staking

import (
	"fmt"
	"regexp"

	"github.com/holiman/uint256"
)

// Membership is an informational tier. It has no effect on reward arithmetic.
type Membership uint8

const (
	MembershipBasic Membership = iota
	MembershipStandard
	MembershipCompanion
)

func (m Membership) String() string {
	switch m {
	case MembershipBasic:
		return "Basic"
	case MembershipStandard:
		return "Standard"
	case MembershipCompanion:
		return "Companion"
	}
	return fmt.Sprintf("Membership(%d)", uint8(m))
}

func (m Membership) MarshalText() ([]byte, error) {
	if m > MembershipCompanion {
		return nil, fmt.Errorf("unknown membership:%d", m)
	}
	return []byte(m.String()), nil
}

func (m *Membership) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Basic":
		*m = MembershipBasic
	case "Standard":
		*m = MembershipStandard
	case "Companion":
		*m = MembershipCompanion
	default:
		return fmt.Errorf("unknown membership:%s", text)
	}
	return nil
}

// Account is the current shape of a staker's record.
type Account struct {
	// Tokens currently earning reward
	StakeBalance uint256.Int
	// Reward checkpointed but not yet paid out
	PreReward uint256.Int
	// Block at which PreReward last absorbed StakeBalance's accrual
	LastCheckpointBlock uint64
	// Tokens moved out of staking, waiting for the unlock epoch
	UnstakeBalance uint256.Int
	// Unix nanoseconds when the current unstake lock began
	UnstakeStartTime uint64
	// Epoch from which UnstakeBalance may be withdrawn
	UnstakeAvailableEpoch uint64
	Membership            Membership
}

// AccountV1 is the legacy account shape, from before memberships existed.
// It is only ever read; the first write of a touched account persists the current shape.
type AccountV1 struct {
	StakeBalance          uint256.Int
	PreReward             uint256.Int
	LastCheckpointBlock   uint64
	UnstakeBalance        uint256.Int
	UnstakeStartTime      uint64
	UnstakeAvailableEpoch uint64
}

// AccountVersion tags the stored shape of an account.
type AccountVersion uint8

const (
	AccountVersion1       AccountVersion = 1
	AccountVersionCurrent AccountVersion = 2
)

// VersionedAccount is either an AccountV1 or an Account as found in storage.
type VersionedAccount interface {
	AccountVersion() AccountVersion
}

func (AccountV1) AccountVersion() AccountVersion { return AccountVersion1 }
func (Account) AccountVersion() AccountVersion   { return AccountVersionCurrent }

// UpgradeAccount maps any stored shape to the current Account. It is the only place legacy shapes are handled.
func UpgradeAccount(va VersionedAccount) Account {
	switch a := va.(type) {
	case Account:
		return a
	case *Account:
		return *a
	case AccountV1:
		return upgradeV1(a)
	case *AccountV1:
		return upgradeV1(*a)
	}
	invariantf("unknown account shape %T", va)
	return Account{}
}

func upgradeV1(a AccountV1) Account {
	return Account{
		StakeBalance:          a.StakeBalance,
		PreReward:             a.PreReward,
		LastCheckpointBlock:   a.LastCheckpointBlock,
		UnstakeBalance:        a.UnstakeBalance,
		UnstakeStartTime:      a.UnstakeStartTime,
		UnstakeAvailableEpoch: a.UnstakeAvailableEpoch,
		Membership:            MembershipBasic,
	}
}

// NewAccount is the record created at registration.
func NewAccount(block uint64) Account {
	return Account{LastCheckpointBlock: block, Membership: MembershipBasic}
}

// checkpoint folds the reward accrued since the last checkpoint into PreReward.
func (a *Account) checkpoint(cfg Config, block uint64) {
	add(&a.PreReward, cfg.accrue(&a.StakeBalance, a.LastCheckpointBlock, block))
	a.LastCheckpointBlock = block
}

var validAccountIDRegex = regexp.MustCompile(`^(([a-z\d]+[\-_])*[a-z\d]+\.)*([a-z\d]+[\-_])*[a-z\d]+$`)

// ValidateAccountID checks id is a 2-64 character lowercase account name (segments separated by '.', '-' or '_').
func ValidateAccountID(id string) error {
	if len(id) < 2 || len(id) > 64 || !validAccountIDRegex.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidAccountID, id)
	}
	return nil
}
