// Package journal records submitted registrations in LevelDB so that a
// confirmation wait which timed out can be resumed later.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const txPrefix = "tx:"

// ErrNotFound is returned for transactions the journal has no entry for.
var ErrNotFound = errors.New("transaction not in journal")

// Status of a journaled registration.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusReverted  Status = "reverted"
	StatusTimedOut  Status = "timed_out"
)

// Resumable reports whether a wait on the transaction can still change its status.
func (s Status) Resumable() bool {
	return s == StatusPending || s == StatusTimedOut
}

// Entry is one submitted registration.
type Entry struct {
	TxHash       common.Hash    `json:"txHash"`
	Account      common.Address `json:"account"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	DocumentHash string         `json:"documentHash"`
	Status       Status         `json:"status"`
	SubmittedAt  time.Time      `json:"submittedAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	BlockNumber  uint64         `json:"blockNumber,omitempty"`
}

// Journal is a LevelDB-backed registration journal.
type Journal struct {
	mu  sync.Mutex
	db  *leveldb.DB
	now func() time.Time
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("could not open journal at %s: %w", path, err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

func key(txHash common.Hash) []byte {
	return []byte(txPrefix + strings.ToLower(txHash.Hex()))
}

// Record stores a new entry. SubmittedAt and UpdatedAt are set when zero,
// and an empty Status defaults to pending.
func (j *Journal) Record(entry Entry) error {
	now := j.now().UTC()
	if entry.SubmittedAt.IsZero() {
		entry.SubmittedAt = now
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = entry.SubmittedAt
	}
	if entry.Status == "" {
		entry.Status = StatusPending
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.put(entry)
}

// UpdateStatus sets the status and block number of an existing entry.
func (j *Journal) UpdateStatus(txHash common.Hash, status Status, blockNumber uint64) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry, err := j.get(txHash)
	if err != nil {
		return Entry{}, err
	}

	entry.Status = status
	entry.UpdatedAt = j.now().UTC()
	if blockNumber != 0 {
		entry.BlockNumber = blockNumber
	}
	return entry, j.put(entry)
}

// Get returns the entry for txHash.
func (j *Journal) Get(txHash common.Hash) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.get(txHash)
}

// List returns every entry, most recently submitted first.
func (j *Journal) List() ([]Entry, error) {
	iter := j.db.NewIterator(util.BytesPrefix([]byte(txPrefix)), nil)
	defer iter.Release()

	var entries []Entry
	for iter.Next() {
		var entry Entry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			return nil, fmt.Errorf("corrupt journal entry %s: %w", iter.Key(), err)
		}
		entries = append(entries, entry)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].SubmittedAt.After(entries[b].SubmittedAt)
	})
	return entries, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) get(txHash common.Hash) (Entry, error) {
	data, err := j.db.Get(key(txHash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, txHash.Hex())
	}
	if err != nil {
		return Entry{}, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("corrupt journal entry %s: %w", txHash.Hex(), err)
	}
	return entry, nil
}

func (j *Journal) put(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return j.db.Put(key(entry.TxHash), data, nil)
}
