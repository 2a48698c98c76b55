package feedback

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
)

const processedKeyPrefix = "feedback/processed/"

// ProcessedLedger tracks which corrections have already been folded into the
// training pools, so re-ingesting the same export is a no-op
type ProcessedLedger interface {
	Seen(transcriptID, segmentID string) (bool, error)
	Mark(corrections []hearing.Correction) error
}

// CorrectionLedger is the badger-backed ProcessedLedger. A correction is
// identified by its transcript and segment; a second verified correction for
// the same segment is the same correction.
type CorrectionLedger struct {
	db *badger.DB
}

// NewCorrectionLedger creates a ledger over the shared data store
func NewCorrectionLedger(db *badger.DB) *CorrectionLedger {
	return &CorrectionLedger{db: db}
}

// Seen reports whether the correction was already ingested
func (l *CorrectionLedger) Seen(transcriptID, segmentID string) (bool, error) {
	err := l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(processedKey(transcriptID, segmentID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read correction ledger: %w", err)
	}
	return true, nil
}

// Mark records a batch of corrections as ingested
func (l *CorrectionLedger) Mark(corrections []hearing.Correction) error {
	err := l.db.Update(func(txn *badger.Txn) error {
		for _, c := range corrections {
			if err := txn.Set(processedKey(c.TranscriptID, c.SegmentID), []byte{1}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update correction ledger: %w", err)
	}
	return nil
}

func processedKey(transcriptID, segmentID string) []byte {
	return []byte(processedKeyPrefix + transcriptID + "/" + segmentID)
}
