package relay

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

var (
	// ErrClosed is returned by the Journal methods called after Close.
	ErrClosed = errors.New("journal: database is closed")
	// ErrNotFound is returned if the requested key is missing.
	ErrNotFound = errors.New("journal: key not found")
)

// Journal is a persistent key-value store of the relay progress. It must
// survive restarts so that a payout signed once is never signed again for the
// same withdrawal.
type Journal interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Iterate calls f for each key starting with the given prefix in
	// ascending order. Keys and values passed to f are copies.
	Iterate(prefix []byte, f func(key, value []byte) error) error
	Close() error
}

// PebbleJournal is a Journal backed by pebble database. All writes are synced.
type PebbleJournal struct {
	db     *pebble.DB
	closed bool
	mu     sync.RWMutex
}

// OpenJournal opens (or creates) pebble journal in dir. If fs is nil, the
// default OS filesystem is used.
func OpenJournal(dir string, fs vfs.FS) (*PebbleJournal, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(8 << 20),
		MemTableSize: 4 << 20,
	}
	defer opts.Cache.Unref()

	if fs != nil {
		opts.FS = fs
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble database at %q: %w", dir, err)
	}

	return &PebbleJournal{db: db}, nil
}

func (p *PebbleJournal) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrClosed
	}

	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	res := make([]byte, len(value))
	copy(res, value)
	return res, nil
}

func (p *PebbleJournal) Put(key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	return p.db.Set(key, value, pebble.Sync)
}

func (p *PebbleJournal) Delete(key []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	return p.db.Delete(key, pebble.Sync)
}

func (p *PebbleJournal) Iterate(prefix []byte, f func(key, value []byte) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("create iterator: %w", err)
	}

	for ok := it.First(); ok; ok = it.Next() {
		val, err := it.ValueAndErr()
		if err != nil {
			_ = it.Close()
			return fmt.Errorf("read value: %w", err)
		}

		err = f(append([]byte(nil), it.Key()...), append([]byte(nil), val...))
		if err != nil {
			_ = it.Close()
			return err
		}
	}

	return it.Close()
}

func (p *PebbleJournal) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}

// prefixUpperBound returns the smallest key greater than all keys with the
// given prefix, nil if there is no such key.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// Payout progress states.
const (
	statePaying    byte = 1
	stateResolving byte = 2
)

const payoutKeyPrefix = 'w'

// payoutEntry is a journaled progress of the single withdrawal.
type payoutEntry struct {
	state byte
	// success is the outcome being reported, meaningful for resolving state.
	success bool
	// hash and vub identify the last transaction sent for the withdrawal.
	hash util.Uint256
	vub  uint32
	// raw is the signed payout transaction.
	raw []byte
}

func (e *payoutEntry) EncodeBinary(w *io.BinWriter) {
	w.WriteB(e.state)
	w.WriteBool(e.success)
	w.WriteBytes(e.hash[:])
	w.WriteU32LE(e.vub)
	w.WriteVarBytes(e.raw)
}

func (e *payoutEntry) DecodeBinary(r *io.BinReader) {
	e.state = r.ReadB()
	e.success = r.ReadBool()
	r.ReadBytes(e.hash[:])
	e.vub = r.ReadU32LE()
	e.raw = r.ReadVarBytes()
	if r.Err == nil && e.state != statePaying && e.state != stateResolving {
		r.Err = fmt.Errorf("unknown payout state %d", e.state)
	}
}

func (e *payoutEntry) bytes() []byte {
	buf := io.NewBufBinWriter()
	e.EncodeBinary(buf.BinWriter)
	return buf.Bytes()
}

func decodePayoutEntry(b []byte) (*payoutEntry, error) {
	var e payoutEntry

	r := io.NewBinReaderFromBuf(b)
	e.DecodeBinary(r)
	if r.Err != nil {
		return nil, fmt.Errorf("decode payout entry: %w", r.Err)
	}

	return &e, nil
}

func payoutKey(id uint64) []byte {
	key := make([]byte, 9)
	key[0] = payoutKeyPrefix
	binary.BigEndian.PutUint64(key[1:], id)
	return key
}

func payoutIDFromKey(key []byte) (*big.Int, error) {
	if len(key) != 9 || key[0] != payoutKeyPrefix {
		return nil, fmt.Errorf("invalid payout key %x", key)
	}
	return new(big.Int).SetUint64(binary.BigEndian.Uint64(key[1:])), nil
}
