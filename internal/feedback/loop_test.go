package feedback

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
	"github.com/hearingdesk/speaker-attribution/pkg/voicefeatures"
	"github.com/hearingdesk/speaker-attribution/pkg/voicemodel"
)

func testDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// memModels is an in-memory ModelStore for feedback loop tests
type memModels struct {
	models map[string]*voicemodel.SpeakerModel
	pools  map[string][]voicefeatures.FeatureVector
	cfg    *voicemodel.TrainConfig
	puts   int
}

func newMemModels() *memModels {
	cfg := voicemodel.DefaultTrainConfig()
	cfg.MinTrainingSamples = 3
	return &memModels{
		models: make(map[string]*voicemodel.SpeakerModel),
		pools:  make(map[string][]voicefeatures.FeatureVector),
		cfg:    cfg,
	}
}

func (m *memModels) Get(speakerID string) (*voicemodel.SpeakerModel, error) {
	model, ok := m.models[speakerID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", speakerID, voicemodel.ErrModelNotFound)
	}
	return model, nil
}

func (m *memModels) Put(model *voicemodel.SpeakerModel) error {
	m.models[model.SpeakerID] = model
	m.puts++
	return nil
}

func (m *memModels) Pool(speakerID string) ([]voicefeatures.FeatureVector, error) {
	return m.pools[speakerID], nil
}

func (m *memModels) AppendPool(speakerID string, vectors []voicefeatures.FeatureVector) error {
	m.pools[speakerID] = append(m.pools[speakerID], vectors...)
	return nil
}

func (m *memModels) TrainConfigured() *voicemodel.TrainConfig {
	return m.cfg
}

// stubExtractor derives a valid feature vector from the first PCM sample so
// repeated segments yield distinct but deterministic vectors
type stubExtractor struct{}

func (stubExtractor) ExtractPCM(pcm []float64, sampleRate int) (voicefeatures.FeatureVector, error) {
	if len(pcm) == 0 {
		return nil, &voicefeatures.InsufficientAudioError{Reason: "empty window"}
	}
	vec := make(voicefeatures.FeatureVector, voicefeatures.Dim)
	for i := range vec {
		vec[i] = math.Sin(float64(i)*0.7+pcm[0]) + 0.05*pcm[0]
	}
	return vec, nil
}

// mapResolver serves fixed transcript assets
type mapResolver struct {
	assets map[string]*TranscriptAssets
}

func (r *mapResolver) Resolve(transcriptID string) (*TranscriptAssets, error) {
	assets, ok := r.assets[transcriptID]
	if !ok {
		return nil, fmt.Errorf("transcript %s not in manifest", transcriptID)
	}
	return assets, nil
}

// testLoop wires a loop over 60s of 1 Hz audio with three 10s segments
func testLoop(t *testing.T, models *memModels) *Loop {
	t.Helper()

	resolver := &mapResolver{assets: map[string]*TranscriptAssets{
		"t-001": {
			AudioPath: "t-001.wav",
			Segments: []hearing.TranscriptSegment{
				{ID: "seg-1", StartTime: 0, EndTime: 10},
				{ID: "seg-2", StartTime: 10, EndTime: 20},
				{ID: "seg-3", StartTime: 20, EndTime: 30},
				// Past the end of the audio: slices to an empty window
				{ID: "seg-silent", StartTime: 100, EndTime: 110},
			},
		},
	}}

	loop, err := NewLoop(&LoopConfig{
		Models:    models,
		Extractor: stubExtractor{},
		Resolver:  resolver,
		Ledger:    NewCorrectionLedger(testDB(t)),
		LoadAudio: func(path string) (*voicefeatures.Audio, error) {
			pcm := make([]float64, 60)
			for i := range pcm {
				pcm[i] = float64(i) * 0.1
			}
			return &voicefeatures.Audio{PCM: pcm, SampleRate: 1}, nil
		},
	})
	require.NoError(t, err)
	return loop
}

func cruzCorrections(segments ...string) []hearing.Correction {
	corrections := make([]hearing.Correction, len(segments))
	for i, seg := range segments {
		corrections[i] = hearing.Correction{
			TranscriptID: "t-001",
			SegmentID:    seg,
			Speaker:      "Ted Cruz",
			Reviewer:     "editor-1",
		}
	}
	return corrections
}

func TestIngestRetrainsSpeaker(t *testing.T) {
	models := newMemModels()
	loop := testLoop(t, models)

	summary, err := loop.Ingest(context.Background(), cruzCorrections("seg-1", "seg-2", "seg-3"))
	require.NoError(t, err)

	require.Len(t, summary.Speakers, 1)
	retrain := summary.Speakers[0]
	assert.Equal(t, "Ted Cruz", retrain.SpeakerID)
	assert.Equal(t, 3, retrain.CorrectionsUsed)
	assert.Equal(t, 3, retrain.VectorsAdded)
	assert.True(t, retrain.Retrained)
	assert.False(t, retrain.Rejected)
	assert.NoError(t, retrain.Error)

	assert.Equal(t, 1, summary.ModelsRetrained)
	assert.Equal(t, 0, summary.ModelsRejected)
	assert.Equal(t, 3, summary.TotalCorrections)

	// Pool extended and model committed
	assert.Len(t, models.pools["Ted Cruz"], 3)
	require.Contains(t, models.models, "Ted Cruz")
	assert.Equal(t, "Ted Cruz", models.models["Ted Cruz"].SpeakerID)
}

func TestIngestSkipsSpeakerWithFewCorrections(t *testing.T) {
	models := newMemModels()
	loop := testLoop(t, models)

	summary, err := loop.Ingest(context.Background(), cruzCorrections("seg-1", "seg-2"))
	require.NoError(t, err)

	require.Len(t, summary.Speakers, 1)
	retrain := summary.Speakers[0]
	assert.False(t, retrain.Retrained)
	assert.Contains(t, retrain.Reason, "need 3")

	assert.Equal(t, 0, summary.ModelsRetrained)
	assert.Empty(t, models.pools["Ted Cruz"])
	assert.NotContains(t, models.models, "Ted Cruz")
}

func TestIngestRegressionGuardRejectsRefit(t *testing.T) {
	models := newMemModels()

	// An existing model with an unreachable fit quality: any refit looks
	// like a regression and must be rejected
	prior := &voicemodel.SpeakerModel{
		SpeakerID:        "Ted Cruz",
		AvgLogLikelihood: 1e6,
		CreatedAt:        time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	models.models["Ted Cruz"] = prior

	loop := testLoop(t, models)

	summary, err := loop.Ingest(context.Background(), cruzCorrections("seg-1", "seg-2", "seg-3"))
	require.NoError(t, err)

	require.Len(t, summary.Speakers, 1)
	retrain := summary.Speakers[0]
	assert.True(t, retrain.Rejected)
	assert.False(t, retrain.Retrained)
	assert.Contains(t, retrain.Reason, "degrades fit")

	assert.Equal(t, 1, summary.ModelsRejected)
	assert.Equal(t, 0, models.puts)
	assert.Same(t, prior, models.models["Ted Cruz"])

	// The pool is still extended so a later run with more data can recover
	assert.Len(t, models.pools["Ted Cruz"], 3)
}

func TestIngestPreservesCreatedAtOnRefit(t *testing.T) {
	models := newMemModels()

	created := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	models.models["Ted Cruz"] = &voicemodel.SpeakerModel{
		SpeakerID:        "Ted Cruz",
		AvgLogLikelihood: -1e6, // any refit clears the guard
		CreatedAt:        created,
	}

	loop := testLoop(t, models)

	summary, err := loop.Ingest(context.Background(), cruzCorrections("seg-1", "seg-2", "seg-3"))
	require.NoError(t, err)
	require.Equal(t, 1, summary.ModelsRetrained)

	assert.Equal(t, created, models.models["Ted Cruz"].CreatedAt)
}

func TestIngestSkipsUndecodableSegments(t *testing.T) {
	models := newMemModels()
	loop := testLoop(t, models)

	// seg-silent slices past the end of the audio; its extraction fails and
	// the remaining three still retrain the speaker
	summary, err := loop.Ingest(context.Background(), cruzCorrections("seg-1", "seg-2", "seg-3", "seg-silent"))
	require.NoError(t, err)

	require.Len(t, summary.Speakers, 1)
	retrain := summary.Speakers[0]
	assert.Equal(t, 4, retrain.CorrectionsUsed)
	assert.Equal(t, 3, retrain.VectorsAdded)
	assert.True(t, retrain.Retrained)
}

func TestIngestUnresolvableTranscript(t *testing.T) {
	models := newMemModels()
	loop := testLoop(t, models)

	corrections := []hearing.Correction{
		{TranscriptID: "t-999", SegmentID: "seg-1", Speaker: "Ted Cruz"},
		{TranscriptID: "t-999", SegmentID: "seg-2", Speaker: "Ted Cruz"},
		{TranscriptID: "t-999", SegmentID: "seg-3", Speaker: "Ted Cruz"},
	}

	summary, err := loop.Ingest(context.Background(), corrections)
	require.NoError(t, err)

	require.Len(t, summary.Speakers, 1)
	retrain := summary.Speakers[0]
	assert.False(t, retrain.Retrained)
	assert.Equal(t, 0, retrain.VectorsAdded)
	assert.NotEmpty(t, retrain.Reason)
	assert.Equal(t, 0, summary.ModelsRetrained)
}

func TestIngestMultipleSpeakersIndependent(t *testing.T) {
	models := newMemModels()
	loop := testLoop(t, models)

	corrections := append(cruzCorrections("seg-1", "seg-2", "seg-3"),
		hearing.Correction{TranscriptID: "t-001", SegmentID: "seg-1", Speaker: "Amy Klobuchar"},
	)

	summary, err := loop.Ingest(context.Background(), corrections)
	require.NoError(t, err)

	require.Len(t, summary.Speakers, 2)
	assert.Equal(t, 1, summary.ModelsRetrained)

	// One Klobuchar correction is below the gate
	for _, retrain := range summary.Speakers {
		if retrain.SpeakerID == "Amy Klobuchar" {
			assert.False(t, retrain.Retrained)
			assert.Contains(t, retrain.Reason, "need 3")
		}
	}
}

func TestIngestSameExportTwiceIsNoOp(t *testing.T) {
	models := newMemModels()
	loop := testLoop(t, models)
	corrections := cruzCorrections("seg-1", "seg-2", "seg-3")

	first, err := loop.Ingest(context.Background(), corrections)
	require.NoError(t, err)
	require.Equal(t, 1, first.ModelsRetrained)
	require.Len(t, models.pools["Ted Cruz"], 3)
	putsAfterFirst := models.puts

	// Re-ingesting the identical export must not duplicate pool vectors
	// or touch the model again
	second, err := loop.Ingest(context.Background(), corrections)
	require.NoError(t, err)

	assert.Equal(t, 3, second.TotalCorrections)
	assert.Equal(t, 3, second.AlreadyProcessed)
	assert.Empty(t, second.Speakers)
	assert.Equal(t, 0, second.ModelsRetrained)
	assert.Len(t, models.pools["Ted Cruz"], 3)
	assert.Equal(t, putsAfterFirst, models.puts)
}

func TestIngestCumulativeExportOnlyConsidersNew(t *testing.T) {
	models := newMemModels()
	loop := testLoop(t, models)

	_, err := loop.Ingest(context.Background(), cruzCorrections("seg-1", "seg-2", "seg-3"))
	require.NoError(t, err)

	// A cumulative export carries the old corrections plus one new segment;
	// only the new one is considered, and alone it is below the gate
	summary, err := loop.Ingest(context.Background(),
		cruzCorrections("seg-1", "seg-2", "seg-3", "seg-silent"))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.AlreadyProcessed)
	require.Len(t, summary.Speakers, 1)
	assert.Equal(t, 1, summary.Speakers[0].CorrectionsUsed)
	assert.Len(t, models.pools["Ted Cruz"], 3)
}

func TestIngestGatedCorrectionsStayEligible(t *testing.T) {
	models := newMemModels()
	loop := testLoop(t, models)

	// Two corrections are below the per-speaker gate; nothing is processed
	summary, err := loop.Ingest(context.Background(), cruzCorrections("seg-1", "seg-2"))
	require.NoError(t, err)
	require.Equal(t, 0, summary.ModelsRetrained)

	// The next export adds a third; all three must train, none skipped
	summary, err = loop.Ingest(context.Background(), cruzCorrections("seg-1", "seg-2", "seg-3"))
	require.NoError(t, err)

	assert.Equal(t, 0, summary.AlreadyProcessed)
	require.Len(t, summary.Speakers, 1)
	assert.Equal(t, 3, summary.Speakers[0].VectorsAdded)
	assert.True(t, summary.Speakers[0].Retrained)
	assert.Len(t, models.pools["Ted Cruz"], 3)
}

func TestIngestGuardRejectedCorrectionsCountProcessed(t *testing.T) {
	models := newMemModels()
	models.models["Ted Cruz"] = &voicemodel.SpeakerModel{
		SpeakerID:        "Ted Cruz",
		AvgLogLikelihood: 1e6,
	}
	loop := testLoop(t, models)
	corrections := cruzCorrections("seg-1", "seg-2", "seg-3")

	first, err := loop.Ingest(context.Background(), corrections)
	require.NoError(t, err)
	require.Equal(t, 1, first.ModelsRejected)
	require.Len(t, models.pools["Ted Cruz"], 3)

	// The guard rejected the refit but the pool was extended, so a re-run
	// of the same export must not extend it again
	second, err := loop.Ingest(context.Background(), corrections)
	require.NoError(t, err)

	assert.Equal(t, 3, second.AlreadyProcessed)
	assert.Len(t, models.pools["Ted Cruz"], 3)
}

func TestIngestHonorsContextCancellation(t *testing.T) {
	loop := testLoop(t, newMemModels())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loop.Ingest(ctx, cruzCorrections("seg-1", "seg-2", "seg-3"))
	require.ErrorIs(t, err, context.Canceled)
}
