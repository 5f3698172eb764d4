package dblayer

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/dgraph-io/badger"
)

// How many times an update is re-run after losing a commit race.
const maxCommitRetries = 10

var errKeyNotFound = errors.New("key not found")

// kvTxn is the slice of a key-value transaction that the tables are built on.
type kvTxn interface {
	// get returns errKeyNotFound for a missing key.
	get(key []byte) ([]byte, error)
	set(key, value []byte) error
	delete(key []byte) error
	// scan visits keys with the given prefix in lexicographic order.
	scan(prefix []byte, fn func(key, value []byte) error) error
}

type backend interface {
	view(fn func(kvTxn) error) error
	// update may run fn more than once.  Errors returned by fn are passed
	// through unchanged.
	update(fn func(kvTxn) error) error
	close() error
}

type badgerBackend struct {
	db *badger.DB
}

func openBadger(dataDir string) (*badgerBackend, error) {
	opts := badger.DefaultOptions(dataDir).WithLogger(badgerLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, newError("open", fmt.Errorf("while opening badger kv dir %q: %w", dataDir, err))
	}
	return &badgerBackend{db: db}, nil
}

func (b *badgerBackend) view(fn func(kvTxn) error) error {
	txn := b.db.NewTransaction(false)
	defer txn.Discard()
	return fn(badgerTxn{txn})
}

func (b *badgerBackend) update(fn func(kvTxn) error) error {
	for attempt := 0; ; attempt++ {
		txn := b.db.NewTransaction(true)
		if err := fn(badgerTxn{txn}); err != nil {
			txn.Discard()
			return err
		}

		err := txn.Commit()
		txn.Discard()
		if err == nil {
			return nil
		}
		if errors.Is(err, badger.ErrConflict) && attempt < maxCommitRetries {
			continue
		}
		return newError("commit", err)
	}
}

func (b *badgerBackend) close() error {
	if err := b.db.Close(); err != nil {
		return newError("close", err)
	}
	return nil
}

type badgerTxn struct {
	txn *badger.Txn
}

func (t badgerTxn) get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errKeyNotFound
	}
	if err != nil {
		return nil, newError("get", fmt.Errorf("key %q: %w", key, err))
	}

	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, newError("get", fmt.Errorf("while copying value of %q: %w", key, err))
	}
	return value, nil
}

func (t badgerTxn) set(key, value []byte) error {
	if err := t.txn.Set(key, value); err != nil {
		return newError("set", fmt.Errorf("key %q: %w", key, err))
	}
	return nil
}

func (t badgerTxn) delete(key []byte) error {
	if err := t.txn.Delete(key); err != nil {
		return newError("delete", fmt.Errorf("key %q: %w", key, err))
	}
	return nil
}

func (t badgerTxn) scan(prefix []byte, fn func(key, value []byte) error) error {
	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return newError("scan", fmt.Errorf("while copying value of %q: %w", item.Key(), err))
		}
		if err := fn(item.KeyCopy(nil), value); err != nil {
			return err
		}
	}
	return nil
}

// badgerLogger routes badger's internal logging to slog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	slog.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "badger"))
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	slog.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "badger"))
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	slog.Info(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "badger"))
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	slog.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "badger"))
}

// memoryBackend keeps everything in a map.  Updates are serialized and
// applied copy-on-write, so a failed update leaves no trace.
type memoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: map[string][]byte{}}
}

func (b *memoryBackend) view(fn func(kvTxn) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fn(&memoryTxn{data: b.data, readOnly: true})
}

func (b *memoryBackend) update(fn func(kvTxn) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	working := maps.Clone(b.data)
	if err := fn(&memoryTxn{data: working}); err != nil {
		return err
	}
	b.data = working
	return nil
}

func (b *memoryBackend) close() error {
	return nil
}

type memoryTxn struct {
	data     map[string][]byte
	readOnly bool
}

func (t *memoryTxn) get(key []byte) ([]byte, error) {
	value, ok := t.data[string(key)]
	if !ok {
		return nil, errKeyNotFound
	}
	return slices.Clone(value), nil
}

func (t *memoryTxn) set(key, value []byte) error {
	if t.readOnly {
		return newError("set", ErrReadOnly)
	}
	t.data[string(key)] = slices.Clone(value)
	return nil
}

func (t *memoryTxn) delete(key []byte) error {
	if t.readOnly {
		return newError("delete", ErrReadOnly)
	}
	delete(t.data, string(key))
	return nil
}

func (t *memoryTxn) scan(prefix []byte, fn func(key, value []byte) error) error {
	p := string(prefix)
	keys := make([]string, 0)
	for k := range t.data {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	for _, k := range keys {
		if err := fn([]byte(k), slices.Clone(t.data[k])); err != nil {
			return err
		}
	}
	return nil
}
