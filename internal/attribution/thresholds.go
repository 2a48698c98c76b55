package attribution

import (
	"errors"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hearingdesk/speaker-attribution/pkg/logging"
)

const (
	thresholdCurrentKey   = "thresholds/current"
	thresholdHistoryKey   = "thresholds/v/"
	thresholdVersionWidth = 8
)

// ThresholdStore persists the versioned decision threshold set. Every
// accepted set is kept in history so a bad optimization run can be rolled
// back to any prior version.
type ThresholdStore struct {
	db     *badger.DB
	logger logging.Logger
}

// NewThresholdStore creates a threshold store over an open badger database
func NewThresholdStore(db *badger.DB, logger logging.Logger) *ThresholdStore {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &ThresholdStore{
		db: db,
		logger: logger.WithFields(logging.Fields{
			"component": "threshold_store",
		}),
	}
}

// Current returns the active threshold set, falling back to defaults when
// none has been stored yet
func (s *ThresholdStore) Current() (*ThresholdSet, error) {
	set := &ThresholdSet{}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(thresholdCurrentKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, set)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return DefaultThresholdSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load thresholds: %w", err)
	}

	return set, nil
}

// Put validates and activates a new threshold set, assigning it the next
// version number and recording it in history
func (s *ThresholdStore) Put(set *ThresholdSet) (*ThresholdSet, error) {
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("invalid threshold set: %w", err)
	}

	current, err := s.Current()
	if err != nil {
		return nil, err
	}

	stamped := *set
	stamped.Version = current.Version + 1
	stamped.SavedAt = time.Now().UTC()

	encoded, err := msgpack.Marshal(&stamped)
	if err != nil {
		return nil, fmt.Errorf("failed to encode thresholds: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(thresholdCurrentKey), encoded); err != nil {
			return err
		}
		return txn.Set([]byte(versionKey(stamped.Version)), encoded)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store thresholds: %w", err)
	}

	s.logger.Info("Threshold set activated", logging.Fields{
		"version":                  stamped.Version,
		"high_confidence_override": stamped.HighConfidenceOverride,
		"medium_confidence_boost":  stamped.MediumConfidenceBoost,
		"minimum_usable":           stamped.MinimumUsable,
	})

	return &stamped, nil
}

// Get returns one historical version
func (s *ThresholdStore) Get(version int) (*ThresholdSet, error) {
	set := &ThresholdSet{}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(versionKey(version)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, set)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("threshold version %d not found", version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load threshold version %d: %w", version, err)
	}

	return set, nil
}

// Rollback re-activates a historical version as a new version, so the
// history itself stays append-only
func (s *ThresholdStore) Rollback(version int) (*ThresholdSet, error) {
	set, err := s.Get(version)
	if err != nil {
		return nil, err
	}

	s.logger.Warn("Rolling back thresholds", logging.Fields{
		"to_version": version,
	})

	return s.Put(set)
}

// History returns all stored versions, oldest first
func (s *ThresholdStore) History() ([]*ThresholdSet, error) {
	var sets []*ThresholdSet

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(thresholdHistoryKey)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				set := &ThresholdSet{}
				if err := msgpack.Unmarshal(val, set); err != nil {
					return err
				}
				sets = append(sets, set)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load threshold history: %w", err)
	}

	sort.Slice(sets, func(i, j int) bool { return sets[i].Version < sets[j].Version })

	return sets, nil
}

// versionKey zero-pads versions so badger's lexicographic iteration matches
// numeric order
func versionKey(version int) string {
	return fmt.Sprintf("%s%0*d", thresholdHistoryKey, thresholdVersionWidth, version)
}
