package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ClipCandidate is one clip advertised by a content source before download
type ClipCandidate struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	MediaURL    string        `json:"media_url"`
	Duration    time.Duration `json:"duration"`
}

// Source is an external provider of candidate voice clips
type Source interface {
	// Name identifies the source in logs and sample metadata
	Name() string

	// Search returns candidate clips for a free-text query
	Search(ctx context.Context, query string, limit int) ([]ClipCandidate, error)

	// Download fetches one candidate's media into destDir and returns the
	// local file path
	Download(ctx context.Context, candidate *ClipCandidate, destDir string) (string, error)
}

// ArchiveSourceConfig configures an HTTP archive source
type ArchiveSourceConfig struct {
	Name      string        `json:"name" yaml:"name"`
	BaseURL   string        `json:"base_url" yaml:"base_url"`
	UserAgent string        `json:"user_agent" yaml:"user_agent"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
}

// ArchiveSource queries a JSON search API over HTTP for archived hearing
// and floor-speech clips
type ArchiveSource struct {
	cfg    *ArchiveSourceConfig
	client *http.Client
}

// NewArchiveSource creates an HTTP archive source
func NewArchiveSource(cfg *ArchiveSourceConfig) (*ArchiveSource, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("archive source requires a base URL")
	}
	if cfg.Name == "" {
		cfg.Name = "archive"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ArchiveSource{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Name implements Source
func (s *ArchiveSource) Name() string {
	return s.cfg.Name
}

type searchResponse struct {
	Results []struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		MediaURL    string  `json:"media_url"`
		DurationS   float64 `json:"duration_s"`
	} `json:"results"`
}

// Search implements Source
func (s *ArchiveSource) Search(ctx context.Context, query string, limit int) ([]ClipCandidate, error) {
	searchURL := s.cfg.BaseURL + "/search?q=" + url.QueryEscape(query) + "&limit=" + strconv.Itoa(limit)

	body, err := s.get(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var decoded searchResponse
	if err := json.NewDecoder(body).Decode(&decoded); err != nil {
		return nil, NewSourceError(s.cfg.Name, searchURL, ErrCodeBadPayload, "failed to decode search response", err)
	}

	candidates := make([]ClipCandidate, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		if r.MediaURL == "" {
			continue
		}
		candidates = append(candidates, ClipCandidate{
			Title:       r.Title,
			Description: r.Description,
			MediaURL:    r.MediaURL,
			Duration:    time.Duration(r.DurationS * float64(time.Second)),
		})
	}

	return candidates, nil
}

// Download implements Source
func (s *ArchiveSource) Download(ctx context.Context, candidate *ClipCandidate, destDir string) (string, error) {
	body, err := s.get(ctx, candidate.MediaURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create sample directory: %w", err)
	}

	path := filepath.Join(destDir, uuid.NewString()+filepath.Ext(candidate.MediaURL))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create sample file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, body); err != nil {
		os.Remove(path)
		return "", NewSourceError(s.cfg.Name, candidate.MediaURL, ErrCodeConnection, "download interrupted", err)
	}

	return path, nil
}

// get performs one HTTP GET and maps failure modes onto source error codes
func (s *ArchiveSource) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, NewSourceError(s.cfg.Name, rawURL, ErrCodeBadPayload, "invalid request URL", err)
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		code := ErrCodeConnection
		if ctx.Err() == context.DeadlineExceeded {
			code = ErrCodeTimeout
		}
		return nil, NewSourceError(s.cfg.Name, rawURL, code, "request failed", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, nil
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, NewSourceError(s.cfg.Name, rawURL, ErrCodeNotFound, "resource not found", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, NewSourceError(s.cfg.Name, rawURL, ErrCodeRateLimit, "rate limited", nil)
	case resp.StatusCode >= 500:
		resp.Body.Close()
		return nil, NewSourceError(s.cfg.Name, rawURL, ErrCodeServer,
			fmt.Sprintf("server error: %d", resp.StatusCode), nil)
	default:
		resp.Body.Close()
		return nil, NewSourceError(s.cfg.Name, rawURL, ErrCodeBadPayload,
			fmt.Sprintf("unexpected status: %d", resp.StatusCode), nil)
	}
}
