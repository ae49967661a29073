// Package badgerstore implements the post and tag store on BadgerDB.
//
// The post/tag relation is kept as edge keys, one key per related pair,
// so a post's tags are read with a single prefix scan.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/iemanja/iemanjad/internal/store"
)

// Key layout.
const (
	tagPrefix         = "tag:"               // tag:{id} → Tag JSON
	tagByNamePrefix   = "idx:tags:name:"     // idx:tags:name:{name} → tagID
	postPrefix        = "post:"              // post:{id} → postRecord JSON
	postByCreatedIdx  = "idx:posts:created:" // idx:posts:created:{created_at}:{id} → postID
	postTagEdgePrefix = "rel:posts_tags:"    // rel:posts_tags:{postID}:{tagID} → empty
	createdKeyLayout  = "20060102T150405.000000000Z"
)

// Store provides BadgerDB-backed persistence.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ store.Backend = (*Store)(nil)

// Open opens the database directory at path. An empty path opens an
// in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
		opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
		opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup
	}
	opts.Logger = nil // Disable Badger's internal logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With("backend", "badger"),
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports an error once the database has been closed.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badger: database is closed")
	}
	return s.db.View(func(*badger.Txn) error { return nil })
}

// Tags returns the tag repository.
func (s *Store) Tags() store.TagRepository {
	return &TagRepository{db: s.db, logger: s.logger}
}

// PostRows returns the post record access.
func (s *Store) PostRows() store.PostRows {
	return &PostRows{db: s.db, logger: s.logger}
}

// Relations returns the relation synchronizer.
func (s *Store) Relations() store.RelationSynchronizer {
	return &Relations{db: s.db, logger: s.logger}
}

func tagKey(tagID string) []byte { return []byte(tagPrefix + tagID) }

func tagNameKey(name string) []byte { return []byte(tagByNamePrefix + name) }

func postKey(postID string) []byte { return []byte(postPrefix + postID) }

func edgePrefix(postID string) []byte { return []byte(postTagEdgePrefix + postID + ":") }

func edgeKey(postID, tagID string) []byte {
	return []byte(postTagEdgePrefix + postID + ":" + tagID)
}

// getJSON loads the value at key into v. It returns badger.ErrKeyNotFound
// untouched so callers can map it.
func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// keysWithPrefix returns copies of every key under prefix without loading values.
func keysWithPrefix(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func countPrefix(txn *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	n := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n
}

// isDecodeError reports whether err came from decoding a stored value.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// wrapError passes store errors through and reports anything else as a
// database failure.
func wrapError(err error) error {
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return err
	}
	return store.ErrDatabase.WithCause(err)
}
