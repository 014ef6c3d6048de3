package store

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/TxnLab/ftstake/internal/lib/staking"
)

var (
	accountPrefix = []byte("a/")
	tokenPrefix   = []byte("t/")
	contractKey   = []byte("c")
)

var (
	ErrNotInitialized     = errors.New("staking contract not initialized")
	ErrAlreadyInitialized = errors.New("staking contract already initialized")
	ErrMigrationRequired  = errors.New("staking contract record is a previous version, run the migrate command")
)

var _ staking.Store = (*Store)(nil)

func accountKey(id string) []byte {
	return append(append([]byte{}, accountPrefix...), id...)
}

func tokenKey(id string) []byte {
	return append(append([]byte{}, tokenPrefix...), id...)
}

// Account returns the stored shape of an account, or staking.ErrAccountNotFound.
func (s *Store) Account(id string) (staking.VersionedAccount, error) {
	data, found, err := s.get(accountKey(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, staking.ErrAccountNotFound
	}
	account, err := decodeAccount(data)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", id, err)
	}
	return account, nil
}

func (s *Store) HasAccount(id string) (bool, error) {
	has, err := s.db.Has(accountKey(id), &readOpt)
	if err != nil {
		return false, fmt.Errorf("has account %s: %w", id, err)
	}
	return has, nil
}

// StorageSize is the key plus encoded value size of the account.
func (s *Store) StorageSize(id string, account staking.Account) (uint64, error) {
	data, err := encodeAccount(account)
	if err != nil {
		return 0, err
	}
	return uint64(len(accountKey(id)) + len(data)), nil
}

// AccountIDs lists every registered account.
func (s *Store) AccountIDs() ([]string, error) {
	return s.keys(accountPrefix)
}

// Commit writes all accounts and the contract of the change set in one batch.
func (s *Store) Commit(cs staking.ChangeSet) error {
	batch := new(leveldb.Batch)
	for id, account := range cs.Accounts {
		data, err := encodeAccount(account)
		if err != nil {
			return fmt.Errorf("encode account %s: %w", id, err)
		}
		batch.Put(accountKey(id), data)
	}
	if cs.Contract != nil {
		data, err := encodeContract(*cs.Contract)
		if err != nil {
			return fmt.Errorf("encode contract: %w", err)
		}
		batch.Put(contractKey, data)
	}
	return s.write(batch)
}

// Contract loads the current contract record. A legacy record yields ErrMigrationRequired.
func (s *Store) Contract() (staking.Contract, error) {
	data, found, err := s.get(contractKey)
	if err != nil {
		return staking.Contract{}, err
	}
	if !found {
		return staking.Contract{}, ErrNotInitialized
	}
	contract, legacy, err := decodeContract(data)
	if err != nil {
		return staking.Contract{}, err
	}
	if legacy != nil {
		return staking.Contract{}, ErrMigrationRequired
	}
	return *contract, nil
}

// InitContract stores the record of a new staking contract.
func (s *Store) InitContract(contract staking.Contract) error {
	has, err := s.db.Has(contractKey, &readOpt)
	if err != nil {
		return err
	}
	if has {
		return ErrAlreadyInitialized
	}
	return s.Commit(staking.ChangeSet{Contract: &contract})
}

// MigrateContract rewrites a legacy contract record in the current shape. It reports false, and changes
// nothing, when the record is already current.
func (s *Store) MigrateContract() (bool, error) {
	data, found, err := s.get(contractKey)
	if err != nil {
		return false, err
	}
	if !found {
		return false, ErrNotInitialized
	}
	_, legacy, err := decodeContract(data)
	if err != nil {
		return false, err
	}
	if legacy == nil {
		return false, nil
	}
	migrated := staking.MigrateContract(*legacy)
	return true, s.Commit(staking.ChangeSet{Contract: &migrated})
}

// PutAccountV1 writes an account in the legacy shape, as found in stores created before memberships.
func (s *Store) PutAccountV1(id string, account staking.AccountV1) error {
	data, err := encodeAccountV1(account)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Put(accountKey(id), data)
	return s.write(batch)
}

// PutContractV1 writes the contract in the legacy shape.
func (s *Store) PutContractV1(contract staking.ContractV1) error {
	data, err := encodeContractV1(contract)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Put(contractKey, data)
	return s.write(batch)
}

// TokenBalance returns the token ledger balance of id, zero if it never held any.
func (s *Store) TokenBalance(id string) (uint256.Int, error) {
	data, found, err := s.get(tokenKey(id))
	if err != nil || !found {
		return uint256.Int{}, err
	}
	return decodeBalance(data)
}

// CommitTokenBalances writes every balance in one batch.
func (s *Store) CommitTokenBalances(balances map[string]uint256.Int) error {
	batch := new(leveldb.Batch)
	for id, balance := range balances {
		data, err := encodeBalance(&balance)
		if err != nil {
			return fmt.Errorf("encode balance %s: %w", id, err)
		}
		batch.Put(tokenKey(id), data)
	}
	return s.write(batch)
}
