package collector

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
)

const (
	sampleKeyPrefix   = "sample/"
	rejectedKeyPrefix = "rejected/"
)

// SampleIndex is the incrementally-updated metadata index of collected
// voice samples, keyed by speaker and source URL so re-collection runs
// skip clips that were already taken
type SampleIndex struct {
	db *badger.DB
}

// NewSampleIndex creates a sample index over an open badger database
func NewSampleIndex(db *badger.DB) *SampleIndex {
	return &SampleIndex{db: db}
}

// Has reports whether a sample from this source URL was already collected
// for the speaker
func (x *SampleIndex) Has(speakerID, sourceURL string) (bool, error) {
	err := x.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(sampleKey(speakerID, sourceURL))
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check sample index: %w", err)
	}
	return true, nil
}

// Rejected reports whether a clip from this source URL already failed a
// post-download gate for the speaker
func (x *SampleIndex) Rejected(speakerID, sourceURL string) (bool, error) {
	err := x.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(rejectedKey(speakerID, sourceURL))
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check rejected index: %w", err)
	}
	return true, nil
}

// MarkRejected records a gate-failed clip so later runs skip it without
// re-downloading. Rejections live under their own prefix; List never
// returns them.
func (x *SampleIndex) MarkRejected(speakerID, sourceURL string) error {
	err := x.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rejectedKey(speakerID, sourceURL), []byte{1})
	})
	if err != nil {
		return fmt.Errorf("failed to record rejected clip: %w", err)
	}
	return nil
}

// Put records one collected sample
func (x *SampleIndex) Put(sample *hearing.VoiceSample) error {
	encoded, err := msgpack.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to encode sample: %w", err)
	}

	return x.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sampleKey(sample.SpeakerID, sample.SourceURL), encoded)
	})
}

// List returns all collected samples for one speaker
func (x *SampleIndex) List(speakerID string) ([]hearing.VoiceSample, error) {
	var samples []hearing.VoiceSample

	err := x.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sampleKeyPrefix + speakerID + "/")

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				sample := hearing.VoiceSample{}
				if err := msgpack.Unmarshal(val, &sample); err != nil {
					return err
				}
				samples = append(samples, sample)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list samples for %s: %w", speakerID, err)
	}

	return samples, nil
}

// sampleKey hashes the source URL so arbitrary URLs make safe fixed-width
// key suffixes
func sampleKey(speakerID, sourceURL string) []byte {
	sum := sha256.Sum256([]byte(sourceURL))
	return []byte(sampleKeyPrefix + speakerID + "/" + hex.EncodeToString(sum[:16]))
}

func rejectedKey(speakerID, sourceURL string) []byte {
	sum := sha256.Sum256([]byte(sourceURL))
	return []byte(rejectedKeyPrefix + speakerID + "/" + hex.EncodeToString(sum[:16]))
}
