package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/xtal-lab/xtal/internal/document"
)

const (
	docPrefix       = "doc/"
	seqKey          = "seq/documents"
	seqBandwidth    = 64
	conflictRetries = 8
)

// BadgerRepository implements document.Repository on an embedded badger
// database. Values are msgpack records compressed with zstd. Each write is a
// single Update transaction.
type BadgerRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewBadgerRepository opens (or creates) a badger database at path.
func NewBadgerRepository(path string, maxMemMB int) (*BadgerRepository, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	clamp := func(val, lo, high int64) int64 {
		return min(max(val, lo), high)
	}
	memTableSize := clamp(int64(maxMemMB/4), 8, 64) << 20

	// Values are compressed before they reach badger, so table compression is off.
	opts := badger.DefaultOptions(path).
		WithDetectConflicts(true).
		WithCompression(options.None).
		WithNumMemtables(2).
		WithMemTableSize(memTableSize).
		WithBaseTableSize(memTableSize).
		WithIndexCacheSize(clamp(int64(maxMemMB/4), 16, 128) << 20).
		WithLoggingLevel(badger.ERROR).
		WithMetricsEnabled(false)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return newBadgerRepository(db)
}

func newBadgerRepository(db *badger.DB) (*BadgerRepository, error) {
	seq, err := db.GetSequence([]byte(seqKey), seqBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open document sequence: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	if err != nil {
		seq.Release()
		db.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		seq.Release()
		db.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	slog.Info("[Badger] Repository opened")
	return &BadgerRepository{db: db, seq: seq, enc: enc, dec: dec}, nil
}

func docKey(id string) []byte {
	return []byte(docPrefix + id)
}

func (r *BadgerRepository) encode(rec record) ([]byte, error) {
	raw, err := msgpack.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document %s: %w", rec.ID, err)
	}
	return r.enc.EncodeAll(raw, nil), nil
}

func (r *BadgerRepository) decode(item *badger.Item) (record, error) {
	var rec record
	err := item.Value(func(val []byte) error {
		raw, err := r.dec.DecodeAll(val, nil)
		if err != nil {
			return fmt.Errorf("failed to decompress document: %w", err)
		}
		return msgpack.Unmarshal(raw, &rec)
	})
	if err != nil {
		return record{}, fmt.Errorf("failed to decode document %s: %w", item.Key(), err)
	}
	return rec, nil
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (r *BadgerRepository) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = r.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		slog.Debug("[Badger] Transaction conflict, retrying", "attempt", attempt+1)
	}
	return err
}

func (r *BadgerRepository) get(txn *badger.Txn, id string) (record, error) {
	item, err := txn.Get(docKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return record{}, document.ErrNotFound
	}
	if err != nil {
		return record{}, fmt.Errorf("failed to read document %s: %w", id, err)
	}
	return r.decode(item)
}

func (r *BadgerRepository) put(txn *badger.Txn, rec record) error {
	val, err := r.encode(rec)
	if err != nil {
		return err
	}
	return txn.Set(docKey(rec.ID), val)
}

// modify loads one record, applies fn and stores it in a single transaction.
func (r *BadgerRepository) modify(id string, fn func(rec *record)) error {
	return r.update(func(txn *badger.Txn) error {
		rec, err := r.get(txn, id)
		if err != nil {
			return err
		}
		fn(&rec)
		return r.put(txn, rec)
	})
}

func (r *BadgerRepository) all(txn *badger.Txn) ([]record, error) {
	var recs []record
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	prefix := []byte(docPrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		rec, err := r.decode(it.Item())
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (r *BadgerRepository) Create(ctx context.Context, d *document.Document) error {
	next, err := r.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to allocate document sequence: %w", err)
	}
	err = r.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(docKey(d.ID)); err == nil {
			return document.ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to read document %s: %w", d.ID, err)
		}
		rec := toRecord(d)
		rec.Seq = int64(next) + 1
		return r.put(txn, rec)
	})
	if err != nil {
		return err
	}
	d.Seq = int64(next) + 1
	return nil
}

func (r *BadgerRepository) Get(ctx context.Context, id string) (*document.Document, error) {
	var rec record
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = r.get(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec.document(), nil
}

func (r *BadgerRepository) List(ctx context.Context) ([]*document.Document, error) {
	var recs []record
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		recs, err = r.all(txn)
		return err
	})
	if err != nil {
		return nil, err
	}
	result := make([]*document.Document, len(recs))
	for i, rec := range recs {
		result[i] = rec.document()
	}
	sortBySeq(result)
	return result, nil
}

func (r *BadgerRepository) Update(ctx context.Context, d *document.Document) error {
	return r.modify(d.ID, func(rec *record) {
		rec.Name = d.Name
		rec.Content = d.Content
		rec.UpdatedAt = d.UpdatedAt
	})
}

func (r *BadgerRepository) SetActive(ctx context.Context, id string) error {
	return r.update(func(txn *badger.Txn) error {
		recs, err := r.all(txn)
		if err != nil {
			return err
		}
		found := false
		for _, rec := range recs {
			if rec.ID == id {
				found = true
				break
			}
		}
		if !found {
			return document.ErrNotFound
		}
		for _, rec := range recs {
			active := rec.ID == id
			if rec.Active == active {
				continue
			}
			rec.Active = active
			if err := r.put(txn, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *BadgerRepository) Delete(ctx context.Context, id string) error {
	return r.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(docKey(id)); errors.Is(err, badger.ErrKeyNotFound) {
			return document.ErrNotFound
		} else if err != nil {
			return fmt.Errorf("failed to read document %s: %w", id, err)
		}
		return txn.Delete(docKey(id))
	})
}

func (r *BadgerRepository) WriteOutcome(ctx context.Context, id string, result string, errs string) error {
	return r.modify(id, func(rec *record) {
		rec.Result = result
		rec.Errors = errs
	})
}

// Ping reports whether the database is open.
func (r *BadgerRepository) Ping(ctx context.Context) error {
	if r.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// Close releases the sequence lease and closes the database.
func (r *BadgerRepository) Close() error {
	var firstErr error
	if err := r.seq.Release(); err != nil {
		firstErr = fmt.Errorf("failed to release document sequence: %w", err)
	}
	r.dec.Close()
	if err := r.enc.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close zstd encoder: %w", err)
	}
	if err := r.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close badger database: %w", err)
	}
	if firstErr != nil {
		return firstErr
	}
	slog.Info("[Badger] Repository closed")
	return nil
}
