package record

import (
	"encoding/json"
	"errors"

	badger "github.com/dgraph-io/badger/v4"
)

const recordingKeyPrefix = "recording:"

// Index is a small badger-backed store of terminal recording outcomes, so a
// status query still answers after the in-memory sweep drops the task.
type Index struct {
	db *badger.DB
}

func NewIndex(dir string) (*Index, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, err
	}
	return &Index{db: db}, nil
}

func (i *Index) Close() error {
	return i.db.Close()
}

func (i *Index) Put(clip Clip) error {
	data, err := json.Marshal(clip)
	if err != nil {
		return err
	}
	return i.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordingKeyPrefix+clip.EventID), data)
	})
}

func (i *Index) Get(eventID string) (*Clip, error) {
	var data []byte
	err := i.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordingKeyPrefix + eventID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var clip Clip
	if err := json.Unmarshal(data, &clip); err != nil {
		return nil, err
	}
	return &clip, nil
}
