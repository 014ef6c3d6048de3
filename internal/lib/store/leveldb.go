package store

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Options options for opening the ledger database.
type Options struct {
	CacheSize              int
	OpenFilesCacheCapacity int
}

var (
	writeOpt = opt.WriteOptions{Sync: true}
	readOpt  = opt.ReadOptions{}
)

// Store persists the staking contract, its accounts, and token balances in a single level db.
type Store struct {
	db  *leveldb.DB
	stg storage.Storage
}

// New opens a persistent store at path, creating an empty one if not there.
func New(path string, opts Options) (*Store, error) {
	stg, err := storage.OpenFile(path, false)
	if err != nil {
		return nil, errors.Wrap(err, "open ledger storage")
	}
	return open(stg, opts.CacheSize, opts.OpenFilesCacheCapacity)
}

// NewMem creates a store held in memory.
func NewMem() (*Store, error) {
	return open(storage.NewMemStorage(), 0, 0)
}

func open(stg storage.Storage, cacheSize, openFilesCacheCapacity int) (*Store, error) {
	if cacheSize < 16 {
		cacheSize = 16
	}
	if openFilesCacheCapacity < 16 {
		openFilesCacheCapacity = 16
	}
	// the db does not take ownership of stg; Close releases both
	db, err := leveldb.Open(stg, &opt.Options{
		OpenFilesCacheCapacity: openFilesCacheCapacity,
		BlockCacheCapacity:     cacheSize / 2 * opt.MiB,
		WriteBuffer:            cacheSize / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})
	if err != nil {
		_ = stg.Close()
		return nil, errors.Wrap(err, "open level db")
	}
	return &Store{db: db, stg: stg}, nil
}

// Close closes the db and releases its storage lock. Later operations will all fail.
func (s *Store) Close() error {
	err := s.db.Close()
	if serr := s.stg.Close(); err == nil {
		err = serr
	}
	return err
}

func (s *Store) get(key []byte) ([]byte, bool, error) {
	value, err := s.db.Get(key, &readOpt)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get %s", key)
	}
	return value, true, nil
}

func (s *Store) keys(prefix []byte) ([]string, error) {
	var keys []string
	it := s.db.NewIterator(util.BytesPrefix(prefix), &readOpt)
	defer it.Release()
	for it.Next() {
		keys = append(keys, string(it.Key()[len(prefix):]))
	}
	return keys, errors.Wrap(it.Error(), "iterate")
}

func (s *Store) write(batch *leveldb.Batch) error {
	return errors.Wrap(s.db.Write(batch, &writeOpt), "write batch")
}
