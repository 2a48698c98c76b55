package feedback

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
)

// TranscriptAssets locates the audio and segment timing for one processed
// transcript so corrected segments can be re-extracted
type TranscriptAssets struct {
	AudioPath string                      `yaml:"audio_path"`
	Segments  []hearing.TranscriptSegment `yaml:"-"`

	SegmentsPath string `yaml:"segments_path"`
}

// AssetResolver maps a transcript ID to its stored assets
type AssetResolver interface {
	Resolve(transcriptID string) (*TranscriptAssets, error)
}

// FileManifest resolves transcript assets from a YAML manifest mapping
// transcript IDs to audio and segment file paths. Segment files load
// lazily and cache.
type FileManifest struct {
	entries map[string]*TranscriptAssets

	mu     sync.Mutex
	loaded map[string]bool
}

// LoadManifest reads a transcript asset manifest
func LoadManifest(path string) (*FileManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var entries map[string]*TranscriptAssets
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	for id, assets := range entries {
		if assets == nil || assets.AudioPath == "" || assets.SegmentsPath == "" {
			return nil, fmt.Errorf("manifest entry %s: audio_path and segments_path are required", id)
		}
	}

	return &FileManifest{
		entries: entries,
		loaded:  make(map[string]bool),
	}, nil
}

// Resolve implements AssetResolver
func (m *FileManifest) Resolve(transcriptID string) (*TranscriptAssets, error) {
	assets, ok := m.entries[transcriptID]
	if !ok {
		return nil, fmt.Errorf("transcript %s not in manifest", transcriptID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded[transcriptID] {
		segments, err := hearing.LoadSegments(assets.SegmentsPath)
		if err != nil {
			return nil, fmt.Errorf("transcript %s: %w", transcriptID, err)
		}
		assets.Segments = segments
		m.loaded[transcriptID] = true
	}

	return assets, nil
}
