package attribution

import (
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hearingdesk/speaker-attribution/pkg/logging"
)

const evidenceKeyPrefix = "evidence/"

// EvidenceRecord is one attributed segment as persisted for replay. The
// threshold optimizer re-runs the decision ladder over these raw signals
// against correction history.
type EvidenceRecord struct {
	TranscriptID string    `msgpack:"transcript_id" json:"transcript_id"`
	SegmentID    string    `msgpack:"segment_id" json:"segment_id"`
	Speaker      string    `msgpack:"speaker" json:"speaker"`
	Confidence   float64   `msgpack:"confidence" json:"confidence"`
	Method       Method    `msgpack:"method" json:"method"`
	Evidence     Evidence  `msgpack:"evidence" json:"evidence"`
	StartTime    float64   `msgpack:"start_time" json:"start_time"`
	Duration     float64   `msgpack:"duration_s" json:"duration_s"`
	RecordedAt   time.Time `msgpack:"recorded_at" json:"recorded_at"`
}

// EvidenceLog is the badger-backed store of per-segment attribution
// evidence, keyed by transcript then segment
type EvidenceLog struct {
	db     *badger.DB
	logger logging.Logger
}

// NewEvidenceLog creates an evidence log over an open badger database
func NewEvidenceLog(db *badger.DB, logger logging.Logger) *EvidenceLog {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &EvidenceLog{
		db: db,
		logger: logger.WithFields(logging.Fields{
			"component": "evidence_log",
		}),
	}
}

// Append records one segment result, replacing any prior record for the
// same transcript and segment
func (l *EvidenceLog) Append(transcriptID string, result *Result) error {
	record := EvidenceRecord{
		TranscriptID: transcriptID,
		SegmentID:    result.SegmentID,
		Speaker:      result.Speaker,
		Confidence:   result.Confidence,
		Method:       result.Method,
		Evidence:     result.Evidence,
		StartTime:    result.StartTime,
		Duration:     result.Duration,
		RecordedAt:   time.Now().UTC(),
	}

	encoded, err := msgpack.Marshal(&record)
	if err != nil {
		return fmt.Errorf("failed to encode evidence record: %w", err)
	}

	key := evidenceKeyPrefix + transcriptID + "/" + result.SegmentID
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), encoded)
	})
}

// List returns every record for one transcript, in key order
func (l *EvidenceLog) List(transcriptID string) ([]EvidenceRecord, error) {
	return l.scan(evidenceKeyPrefix + transcriptID + "/")
}

// All returns every stored evidence record
func (l *EvidenceLog) All() ([]EvidenceRecord, error) {
	return l.scan(evidenceKeyPrefix)
}

func (l *EvidenceLog) scan(prefix string) ([]EvidenceRecord, error) {
	var records []EvidenceRecord

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				record := EvidenceRecord{}
				if err := msgpack.Unmarshal(val, &record); err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan evidence: %w", err)
	}

	return records, nil
}
