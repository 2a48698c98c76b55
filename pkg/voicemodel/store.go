package voicemodel

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hearingdesk/speaker-attribution/pkg/logging"
	"github.com/hearingdesk/speaker-attribution/pkg/output"
	"github.com/hearingdesk/speaker-attribution/pkg/voicefeatures"
)

const (
	modelKeyPrefix = "voicemodel/model/"
	poolKeyPrefix  = "voicemodel/pool/"
)

// ModelSummary describes one trained model for diagnostics
type ModelSummary struct {
	SpeakerID        string    `json:"speaker_id"`
	SampleCount      int       `json:"sample_count"`
	Components       int       `json:"components"`
	AvgLogLikelihood float64   `json:"avg_log_likelihood"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ModelList is the diagnostics listing of all trained models
type ModelList []ModelSummary

// WriteTable renders the listing as an aligned table
func (l ModelList) WriteTable(w io.Writer) error {
	tw := output.NewTable(w)
	fmt.Fprintln(tw, "SPEAKER\tSAMPLES\tCOMPONENTS\tAVG_LL\tUPDATED")
	for _, m := range l {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%s\n",
			m.SpeakerID, m.SampleCount, m.Components, m.AvgLogLikelihood,
			m.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// Store trains, persists, and scores per-speaker voice models. Writes are
// per-speaker-keyed badger transactions: retraining is an atomic replace and
// concurrent readers never observe a half-written model.
type Store struct {
	db     *badger.DB
	cfg    *TrainConfig
	logger logging.Logger

	mu    sync.RWMutex
	cache map[string]*SpeakerModel
}

// NewStore creates a model store over an open badger database
func NewStore(db *badger.DB, cfg *TrainConfig, logger logging.Logger) *Store {
	if cfg == nil {
		cfg = DefaultTrainConfig()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Store{
		db:  db,
		cfg: cfg,
		logger: logger.WithFields(logging.Fields{
			"component": "voice_model_store",
		}),
		cache: make(map[string]*SpeakerModel),
	}
}

// Train fits a model from the given vectors and atomically replaces any
// prior model for the speaker. On any training failure the prior model is
// left untouched.
func (s *Store) Train(speakerID string, vectors []voicefeatures.FeatureVector) (*SpeakerModel, error) {
	model, err := Fit(speakerID, vectors, s.cfg)
	if err != nil {
		return nil, err
	}

	if err := s.Put(model); err != nil {
		return nil, fmt.Errorf("failed to persist model for %s: %w", speakerID, err)
	}

	s.logger.Info("Voice model trained", logging.Fields{
		"speaker_id":         speakerID,
		"sample_count":       model.SampleCount,
		"components":         len(model.Components),
		"avg_log_likelihood": model.AvgLogLikelihood,
	})

	return model, nil
}

// Put persists a fitted model, replacing any existing one for the speaker
func (s *Store) Put(model *SpeakerModel) error {
	if model.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported model schema version %d", model.SchemaVersion)
	}

	encoded, err := msgpack.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(modelKeyPrefix+model.SpeakerID), encoded)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[model.SpeakerID] = model
	s.mu.Unlock()

	return nil
}

// Get returns the trained model for a speaker, or ErrModelNotFound
func (s *Store) Get(speakerID string) (*SpeakerModel, error) {
	s.mu.RLock()
	if model, ok := s.cache[speakerID]; ok {
		s.mu.RUnlock()
		return model, nil
	}
	s.mu.RUnlock()

	model := &SpeakerModel{}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(modelKeyPrefix + speakerID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, model)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", speakerID, ErrModelNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load model for %s: %w", speakerID, err)
	}

	if model.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("stale model schema %d for %s: %w", model.SchemaVersion, speakerID, ErrModelNotFound)
	}

	if !model.Usable(s.cfg.MinTrainingSamples) {
		// Below the quality floor the model is reported as absent rather
		// than returned with spuriously low confidence
		return nil, fmt.Errorf("%s below sample floor: %w", speakerID, ErrModelNotFound)
	}

	s.mu.Lock()
	s.cache[speakerID] = model
	s.mu.Unlock()

	return model, nil
}

// Score evaluates a feature vector against a speaker's model and returns a
// similarity in [0,1], or ErrModelNotFound when no usable model exists
func (s *Store) Score(speakerID string, vec voicefeatures.FeatureVector) (float64, error) {
	model, err := s.Get(speakerID)
	if err != nil {
		return 0, err
	}
	return model.Score(vec)
}

// ListModels returns summaries of all trained models, sorted by speaker
func (s *Store) ListModels() (ModelList, error) {
	var summaries ModelList

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(modelKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				model := &SpeakerModel{}
				if err := msgpack.Unmarshal(val, model); err != nil {
					return err
				}
				summaries = append(summaries, ModelSummary{
					SpeakerID:        model.SpeakerID,
					SampleCount:      model.SampleCount,
					Components:       len(model.Components),
					AvgLogLikelihood: model.AvgLogLikelihood,
					CreatedAt:        model.CreatedAt,
					UpdatedAt:        model.UpdatedAt,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].SpeakerID < summaries[j].SpeakerID
	})

	return summaries, nil
}

// AppendPool adds feature vectors to a speaker's training pool. The pool is
// the full vector history that retraining refits over.
func (s *Store) AppendPool(speakerID string, vectors []voicefeatures.FeatureVector) error {
	for i, v := range vectors {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("pool vector %d: %w", i, err)
		}
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(poolKeyPrefix + speakerID)

		var pool [][]float64
		item, err := txn.Get(key)
		if err == nil {
			err = item.Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &pool)
			})
			if err != nil {
				return fmt.Errorf("failed to decode training pool: %w", err)
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		for _, v := range vectors {
			pool = append(pool, v)
		}

		encoded, err := msgpack.Marshal(pool)
		if err != nil {
			return fmt.Errorf("failed to encode training pool: %w", err)
		}
		return txn.Set(key, encoded)
	})
}

// ReplacePool resets a speaker's training pool to exactly the given vectors.
// Used when retraining from the canonical sample set; correction feedback
// appends instead.
func (s *Store) ReplacePool(speakerID string, vectors []voicefeatures.FeatureVector) error {
	for i, v := range vectors {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("pool vector %d: %w", i, err)
		}
	}

	pool := make([][]float64, len(vectors))
	for i, v := range vectors {
		pool[i] = v
	}

	encoded, err := msgpack.Marshal(pool)
	if err != nil {
		return fmt.Errorf("failed to encode training pool: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(poolKeyPrefix+speakerID), encoded)
	})
}

// Pool returns a speaker's accumulated training vectors
func (s *Store) Pool(speakerID string) ([]voicefeatures.FeatureVector, error) {
	var pool [][]float64

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(poolKeyPrefix + speakerID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &pool)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load training pool for %s: %w", speakerID, err)
	}

	vectors := make([]voicefeatures.FeatureVector, len(pool))
	for i, v := range pool {
		vectors[i] = v
	}

	return vectors, nil
}

// TrainConfigured exposes the store's training configuration
func (s *Store) TrainConfigured() *TrainConfig {
	return s.cfg
}
