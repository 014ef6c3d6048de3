package store

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/TxnLab/ftstake/internal/lib/staking"
)

// Every stored account and contract value is a one byte shape tag followed by the rlp of the record.
const (
	tagAccountV1  byte = 1
	tagAccount    byte = 2
	tagContractV1 byte = 1
	tagContract   byte = 2
)

type accountRecordV1 struct {
	StakeBalance          *big.Int
	PreReward             *big.Int
	LastCheckpointBlock   uint64
	UnstakeBalance        *big.Int
	UnstakeStartTime      uint64
	UnstakeAvailableEpoch uint64
}

type accountRecord struct {
	StakeBalance          *big.Int
	PreReward             *big.Int
	LastCheckpointBlock   uint64
	UnstakeBalance        *big.Int
	UnstakeStartTime      uint64
	UnstakeAvailableEpoch uint64
	Membership            uint8
}

type poolRecord struct {
	TotalStake          *big.Int
	TotalPaidReward     *big.Int
	NumStaker           uint64
	PreReward           *big.Int
	LastCheckpointBlock uint64
	Paused              bool
	PausedBlock         uint64
}

type contractRecordV1 struct {
	OwnerID         string
	TokenContractID string
	RewardNum       uint32
	RewardDenom     uint64
	NumEpochUnlock  uint64
	Pool            poolRecord
}

type contractRecord struct {
	OwnerID         string
	TokenContractID string
	RewardNum       uint32
	RewardDenom     uint64
	NumEpochUnlock  uint64
	Pool            poolRecord
	Version         uint64
}

func toBig(v *uint256.Int) *big.Int {
	return v.ToBig()
}

func fromBig(b *big.Int) (uint256.Int, error) {
	if b == nil {
		return uint256.Int{}, nil
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return uint256.Int{}, fmt.Errorf("stored amount %s exceeds 256 bits", b)
	}
	return *v, nil
}

func encode(tag byte, record any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(tag)
	if err := rlp.Encode(&buf, record); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeAccount(a staking.Account) ([]byte, error) {
	return encode(tagAccount, &accountRecord{
		StakeBalance:          toBig(&a.StakeBalance),
		PreReward:             toBig(&a.PreReward),
		LastCheckpointBlock:   a.LastCheckpointBlock,
		UnstakeBalance:        toBig(&a.UnstakeBalance),
		UnstakeStartTime:      a.UnstakeStartTime,
		UnstakeAvailableEpoch: a.UnstakeAvailableEpoch,
		Membership:            uint8(a.Membership),
	})
}

func encodeAccountV1(a staking.AccountV1) ([]byte, error) {
	return encode(tagAccountV1, &accountRecordV1{
		StakeBalance:          toBig(&a.StakeBalance),
		PreReward:             toBig(&a.PreReward),
		LastCheckpointBlock:   a.LastCheckpointBlock,
		UnstakeBalance:        toBig(&a.UnstakeBalance),
		UnstakeStartTime:      a.UnstakeStartTime,
		UnstakeAvailableEpoch: a.UnstakeAvailableEpoch,
	})
}

// decodeAccount returns the stored shape as is; upgrading is left to staking.UpgradeAccount.
func decodeAccount(data []byte) (staking.VersionedAccount, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty account record")
	}
	var amounts [3]uint256.Int
	switch data[0] {
	case tagAccountV1:
		var r accountRecordV1
		if err := rlp.DecodeBytes(data[1:], &r); err != nil {
			return nil, fmt.Errorf("decode v1 account: %w", err)
		}
		if err := fromBigs([3]*big.Int{r.StakeBalance, r.PreReward, r.UnstakeBalance}, &amounts); err != nil {
			return nil, err
		}
		return staking.AccountV1{
			StakeBalance:          amounts[0],
			PreReward:             amounts[1],
			LastCheckpointBlock:   r.LastCheckpointBlock,
			UnstakeBalance:        amounts[2],
			UnstakeStartTime:      r.UnstakeStartTime,
			UnstakeAvailableEpoch: r.UnstakeAvailableEpoch,
		}, nil
	case tagAccount:
		var r accountRecord
		if err := rlp.DecodeBytes(data[1:], &r); err != nil {
			return nil, fmt.Errorf("decode account: %w", err)
		}
		if err := fromBigs([3]*big.Int{r.StakeBalance, r.PreReward, r.UnstakeBalance}, &amounts); err != nil {
			return nil, err
		}
		if staking.Membership(r.Membership) > staking.MembershipCompanion {
			return nil, fmt.Errorf("unknown membership:%d in account record", r.Membership)
		}
		return staking.Account{
			StakeBalance:          amounts[0],
			PreReward:             amounts[1],
			LastCheckpointBlock:   r.LastCheckpointBlock,
			UnstakeBalance:        amounts[2],
			UnstakeStartTime:      r.UnstakeStartTime,
			UnstakeAvailableEpoch: r.UnstakeAvailableEpoch,
			Membership:            staking.Membership(r.Membership),
		}, nil
	}
	return nil, fmt.Errorf("unknown account record tag:%d", data[0])
}

func fromBigs(in [3]*big.Int, out *[3]uint256.Int) error {
	for i, b := range in {
		v, err := fromBig(b)
		if err != nil {
			return err
		}
		out[i] = v
	}
	return nil
}

func newPoolRecord(p staking.Pool) poolRecord {
	frozen, paused := p.Pause.FrozenBlock()
	return poolRecord{
		TotalStake:          toBig(&p.TotalStake),
		TotalPaidReward:     toBig(&p.TotalPaidReward),
		NumStaker:           p.NumStaker,
		PreReward:           toBig(&p.PreReward),
		LastCheckpointBlock: p.LastCheckpointBlock,
		Paused:              paused,
		PausedBlock:         frozen,
	}
}

func (r poolRecord) pool() (staking.Pool, error) {
	var amounts [3]uint256.Int
	if err := fromBigs([3]*big.Int{r.TotalStake, r.TotalPaidReward, r.PreReward}, &amounts); err != nil {
		return staking.Pool{}, err
	}
	pause := staking.Active()
	if r.Paused {
		pause = staking.PausedAt(r.PausedBlock)
	}
	return staking.Pool{
		TotalStake:          amounts[0],
		TotalPaidReward:     amounts[1],
		NumStaker:           r.NumStaker,
		PreReward:           amounts[2],
		LastCheckpointBlock: r.LastCheckpointBlock,
		Pause:               pause,
	}, nil
}

func encodeContract(c staking.Contract) ([]byte, error) {
	return encode(tagContract, &contractRecord{
		OwnerID:         c.OwnerID,
		TokenContractID: c.TokenContractID,
		RewardNum:       c.Config.RewardNum,
		RewardDenom:     c.Config.RewardDenom,
		NumEpochUnlock:  c.Config.NumEpochUnlock,
		Pool:            newPoolRecord(c.Pool),
		Version:         c.Version,
	})
}

func encodeContractV1(c staking.ContractV1) ([]byte, error) {
	return encode(tagContractV1, &contractRecordV1{
		OwnerID:         c.OwnerID,
		TokenContractID: c.TokenContractID,
		RewardNum:       c.Config.RewardNum,
		RewardDenom:     c.Config.RewardDenom,
		NumEpochUnlock:  c.Config.NumEpochUnlock,
		Pool:            newPoolRecord(c.Pool),
	})
}

// decodeContract returns exactly one of a current contract or a legacy one, depending on the stored tag.
func decodeContract(data []byte) (*staking.Contract, *staking.ContractV1, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("empty contract record")
	}
	switch data[0] {
	case tagContractV1:
		var r contractRecordV1
		if err := rlp.DecodeBytes(data[1:], &r); err != nil {
			return nil, nil, fmt.Errorf("decode v1 contract: %w", err)
		}
		pool, err := r.Pool.pool()
		if err != nil {
			return nil, nil, err
		}
		return nil, &staking.ContractV1{
			OwnerID:         r.OwnerID,
			TokenContractID: r.TokenContractID,
			Config:          staking.Config{RewardNum: r.RewardNum, RewardDenom: r.RewardDenom, NumEpochUnlock: r.NumEpochUnlock},
			Pool:            pool,
		}, nil
	case tagContract:
		var r contractRecord
		if err := rlp.DecodeBytes(data[1:], &r); err != nil {
			return nil, nil, fmt.Errorf("decode contract: %w", err)
		}
		pool, err := r.Pool.pool()
		if err != nil {
			return nil, nil, err
		}
		return &staking.Contract{
			OwnerID:         r.OwnerID,
			TokenContractID: r.TokenContractID,
			Config:          staking.Config{RewardNum: r.RewardNum, RewardDenom: r.RewardDenom, NumEpochUnlock: r.NumEpochUnlock},
			Pool:            pool,
			Version:         r.Version,
		}, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown contract record tag:%d", data[0])
}

func encodeBalance(v *uint256.Int) ([]byte, error) {
	return rlp.EncodeToBytes(toBig(v))
}

func decodeBalance(data []byte) (uint256.Int, error) {
	b := new(big.Int)
	if err := rlp.DecodeBytes(data, b); err != nil {
		return uint256.Int{}, fmt.Errorf("decode balance: %w", err)
	}
	return fromBig(b)
}
