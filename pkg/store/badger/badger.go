package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/merkledrop-labs/merkledrop-go/pkg/store"
)

// Key prefixes for namespacing
const (
	keyPrefixClaim       = "claim:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerClaimStore is a production claim store backed by Badger.
// Provides durable, disk-based storage; MarkClaimed relies on Badger's
// transactional Update so the flag write and the payout commit as one unit.
type BadgerClaimStore struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ store.IClaimStore = (*BadgerClaimStore)(nil)

// NewBadgerClaimStore opens a Badger-backed claim store at dataPath.
// SyncWrites is enabled so a committed claim flag survives a crash. A
// background goroutine runs value-log garbage collection.
func NewBadgerClaimStore(dataPath string, logger *zap.Logger) (*BadgerClaimStore, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true // fsync on every write, a claim flag must not be lost
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bs := &BadgerClaimStore{
		db:     db,
		logger: logger,
	}

	if err := bs.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bs.gcCancel = cancel
	bs.gcWg.Add(1)
	go bs.runGC(ctx)

	logger.Sugar().Infow("Badger claim store initialized", "path", absPath)

	return bs, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerClaimStore) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic value-log garbage collection in the background
func (b *BadgerClaimStore) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func claimKey(addr common.Address) []byte {
	return []byte(keyPrefixClaim + addr.Hex())
}

// Claimed reports whether addr's flag is set.
func (b *BadgerClaimStore) Claimed(addr common.Address) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, fmt.Errorf("claim store is closed")
	}

	var claimed bool
	err := b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(claimKey(addr))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to read claim flag for %s", addr.Hex())
	}

	return claimed, nil
}

// MarkClaimed sets addr's flag and runs payout inside the same Badger
// transaction. A payout error aborts the transaction, so no flag is written
// unless the payout succeeded.
func (b *BadgerClaimStore) MarkClaimed(addr common.Address, payout func() error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("claim store is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		key := claimKey(addr)

		_, err := txn.Get(key)
		if err == nil {
			return store.ErrAlreadyMarked
		}
		if err != badgerdb.ErrKeyNotFound {
			return errors.Wrapf(err, "failed to read claim flag for %s", addr.Hex())
		}

		if err := txn.Set(key, []byte{1}); err != nil {
			return errors.Wrapf(err, "failed to write claim flag for %s", addr.Hex())
		}

		if payout != nil {
			return payout()
		}
		return nil
	})
}

// ListClaimed returns all flagged addresses.
func (b *BadgerClaimStore) ListClaimed() ([]common.Address, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("claim store is closed")
	}

	result := make([]common.Address, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefixClaim)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			hexAddr := key[len(keyPrefixClaim):]
			result = append(result, common.HexToAddress(hexAddr))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to iterate claim flags")
	}

	return result, nil
}

// Close stops the GC goroutine and closes the database. Idempotent.
func (b *BadgerClaimStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	b.gcCancel()
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Infow("Badger claim store closed")
	return nil
}

// HealthCheck verifies the database is reachable.
func (b *BadgerClaimStore) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("claim store is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err != nil && err != badgerdb.ErrKeyNotFound {
			return fmt.Errorf("health check read failed: %w", err)
		}
		return nil
	})
}
