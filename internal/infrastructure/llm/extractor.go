// Package llm adapts the external language-understanding service to the
// query pipeline's gap-extraction boundary. The service sees only the
// uncovered gap text, never the full query.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/monitoring/logging"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/query"
	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/errors"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config holds the connection settings for the extraction service.
type Config struct {
	// BaseURL is the service root; the extraction endpoint is appended.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// APIKey is sent as a bearer token. Empty disables the Authorization
	// header for unauthenticated deployments.
	APIKey string `json:"api_key" yaml:"api_key" mapstructure:"api_key"`

	// Model selects the extraction model on multi-model deployments.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// MaxResponseBytes caps how much of the response body is read.
	MaxResponseBytes int64 `json:"max_response_bytes" yaml:"max_response_bytes" mapstructure:"max_response_bytes"`
}

// DefaultConfig returns settings for a local extraction sidecar.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "http://localhost:8090",
		Model:            "pms-extract-v1",
		MaxResponseBytes: 1 << 20,
	}
}

// ---------------------------------------------------------------------------
// Wire contract
// ---------------------------------------------------------------------------

type extractRequest struct {
	Text           string          `json:"text"`
	Model          string          `json:"model,omitempty"`
	SupportedTypes []typeDescriptor `json:"supported_types"`
}

type typeDescriptor struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type extractResponse struct {
	Entities []struct {
		Text       string  `json:"text"`
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	} `json:"entities"`
}

// ---------------------------------------------------------------------------
// Extractor
// ---------------------------------------------------------------------------

// Extractor is the HTTP implementation of query.GapExtractor. Every failure
// is returned as a typed error so the pipeline can degrade gracefully and
// label the failure reason; the caller owns the timeout via context.
type Extractor struct {
	cfg    *Config
	client *http.Client
	logger logging.Logger

	calls atomic.Int64
}

var _ query.GapExtractor = (*Extractor)(nil)

// NewExtractor builds an Extractor. A nil httpClient falls back to
// http.DefaultClient; a nil logger to the no-op logger.
func NewExtractor(cfg *Config, httpClient *http.Client, logger logging.Logger) (*Extractor, error) {
	if cfg == nil {
		return nil, errors.InvalidParam("llm config is nil")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "llm base_url is empty")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Extractor{cfg: cfg, client: httpClient, logger: logger}, nil
}

// Calls reports how many extraction requests have been issued.
func (e *Extractor) Calls() int64 {
	return e.calls.Load()
}

// ExtractGap sends the gap text and the closed type enum to the service and
// returns its entity guesses. Guesses with unknown types or out-of-range
// confidence are dropped rather than failing the call.
func (e *Extractor) ExtractGap(ctx context.Context, gapText string, supported []query.TypeDescription) ([]query.GapEntity, error) {
	e.calls.Add(1)

	reqBody := extractRequest{
		Text:           gapText,
		Model:          e.cfg.Model,
		SupportedTypes: make([]typeDescriptor, 0, len(supported)),
	}
	for _, td := range supported {
		reqBody.SupportedTypes = append(reqBody.SupportedTypes, typeDescriptor{
			Type:        string(td.Type),
			Description: td.Description,
		})
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "marshal extraction request")
	}

	url := e.cfg.BaseURL + "/v1/extract"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "build extraction request")
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(err, errors.ErrCodeExtractorTimeout, "extraction request timed out")
		}
		return nil, errors.Wrap(err, errors.ErrCodeExtractorUnavailable, "extraction service unreachable")
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, e.cfg.MaxResponseBytes))
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExtractorBadResponse, "read extraction response")
	}
	var parsed extractResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExtractorBadResponse, "decode extraction response")
	}

	out := make([]query.GapEntity, 0, len(parsed.Entities))
	for _, ent := range parsed.Entities {
		t := query.EntityType(ent.Type)
		if !t.IsValid() || ent.Text == "" || ent.Confidence <= 0 || ent.Confidence > 1 {
			e.logger.Debug("dropping malformed extraction guess",
				logging.String("type", ent.Type),
				logging.Float64("confidence", ent.Confidence),
			)
			continue
		}
		out = append(out, query.GapEntity{Text: ent.Text, Type: t, Confidence: ent.Confidence})
	}
	return out, nil
}

// classifyStatus maps a non-2xx status to its degradation reason.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.New(errors.ErrCodeExtractorAuth, fmt.Sprintf("extraction service rejected credentials (status %d)", status))
	case status == http.StatusTooManyRequests:
		return errors.New(errors.ErrCodeExtractorQuota, "extraction service quota exhausted")
	case status >= 500:
		return errors.New(errors.ErrCodeExtractorUnavailable, fmt.Sprintf("extraction service error (status %d)", status))
	default:
		return errors.New(errors.ErrCodeExtractorBadResponse, fmt.Sprintf("unexpected extraction status %d", status))
	}
}
