package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"server/internal/domain"
)

const (
	geminiGenModel = "nano-banana-pro"
	geminiGenStyle = "Photorealistic"

	// Provider task status codes used by GeminiGen.
	geminiGenStatusCompleted = 2
	geminiGenStatusFailed    = 3
)

// GeminiGenOptions configures the GeminiGen adapter.
type GeminiGenOptions struct {
	BaseURL       string
	Credentials   CredentialSource
	CredentialKey string
	HTTPClient    *http.Client
	SubmitTimeout time.Duration
	PollTimeout   time.Duration
}

// GeminiGen is the poll-style provider. Submit may answer synchronously with
// a finished generation; otherwise Poll scans the provider's histories
// listing for the task, since GeminiGen offers no get-by-id endpoint.
type GeminiGen struct {
	httpClient    *http.Client
	baseURL       string
	creds         CredentialSource
	credKey       string
	submitTimeout time.Duration
	pollTimeout   time.Duration
}

// NewGeminiGen creates a GeminiGen adapter.
func NewGeminiGen(opts GeminiGenOptions) *GeminiGen {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.geminigen.ai/uapi/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	submitTimeout := opts.SubmitTimeout
	if submitTimeout <= 0 {
		submitTimeout = 60 * time.Second
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	credKey := opts.CredentialKey
	if credKey == "" {
		credKey = "GEMINIGEN_API_KEY"
	}
	return &GeminiGen{
		httpClient:    client,
		baseURL:       base,
		creds:         opts.Credentials,
		credKey:       credKey,
		submitTimeout: submitTimeout,
		pollTimeout:   pollTimeout,
	}
}

func (g *GeminiGen) Name() string { return "geminigen" }

func (g *GeminiGen) CompletionStyle() CompletionStyle { return CompletionStylePolling }

// Submit posts the generation request. GeminiGen can answer with a finished
// result immediately or with a processing marker and a task uuid.
func (g *GeminiGen) Submit(ctx context.Context, prompt string, src SourceImage) (*SubmitResult, error) {
	apiKey, err := g.apiKey(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("prompt", prompt)
	_ = mw.WriteField("model", geminiGenModel)
	_ = mw.WriteField("style", geminiGenStyle)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, src.Filename))
	header.Set("Content-Type", contentTypeOrDefault(src.MIME))
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("geminigen: build request: %w", err)
	}
	if _, err := part.Write(src.Data); err != nil {
		return nil, fmt.Errorf("geminigen: build request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("geminigen: build request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.submitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/generate_image", &buf)
	if err != nil {
		return nil, fmt.Errorf("geminigen: build request: %w", err)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := g.do(req)
	if err != nil {
		return nil, err
	}

	taskID := stringField(body, "uuid")
	if taskID == "" {
		taskID = stringField(body, "id")
	}
	if taskID == "" {
		return nil, errors.New("geminigen: response carries no task id")
	}

	return &SubmitResult{ExternalTaskID: taskID, Outcome: mapGeminiGenOutcome(body)}, nil
}

// Poll fetches the histories listing and scans it for the task. A task absent
// from the listing is reported as still processing.
func (g *GeminiGen) Poll(ctx context.Context, externalTaskID string) (domain.Outcome, error) {
	apiKey, err := g.apiKey(ctx)
	if err != nil {
		return domain.Outcome{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.pollTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/histories", nil)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("geminigen: build request: %w", err)
	}
	req.Header.Set("x-api-key", apiKey)

	body, err := g.do(req)
	if err != nil {
		return domain.Outcome{}, err
	}

	items, _ := body["result"].([]any)
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if stringField(item, "uuid") == externalTaskID {
			return mapGeminiGenOutcome(item), nil
		}
	}
	return domain.Processing(), nil
}

func (g *GeminiGen) apiKey(ctx context.Context) (string, error) {
	key, err := g.creds.Get(ctx, g.credKey)
	if err != nil {
		return "", fmt.Errorf("geminigen: load api key: %w", err)
	}
	if key == "" {
		return "", errors.New("geminigen: api key is missing")
	}
	return key, nil
}

func (g *GeminiGen) do(req *http.Request) (map[string]any, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geminigen: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("geminigen: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geminigen: API error %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("geminigen: decode response: %w", err)
	}
	return body, nil
}

// mapGeminiGenOutcome translates a task object (from submit or histories)
// into an outcome. Status 2 without an extractable result is an explicit
// failure rather than a silent completion.
func mapGeminiGenOutcome(item map[string]any) domain.Outcome {
	switch intField(item, "status") {
	case geminiGenStatusCompleted:
		url, ok := ExtractResultURL(item)
		if !ok {
			return domain.Failed("generation completed but no image URL returned")
		}
		// The listing returns thumbnail variants; the suffix-free URL is
		// the full-size render.
		return domain.Completed(strings.ReplaceAll(url, "_600px", ""))
	case geminiGenStatusFailed:
		detail := stringField(item, "error_message")
		if detail == "" {
			detail = "generation failed on provider side"
		}
		return domain.Failed(detail)
	default:
		if detail := stringField(item, "error_message"); detail != "" {
			return domain.Failed(detail)
		}
		return domain.Processing()
	}
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%v", v), ".0")
	default:
		return ""
	}
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func contentTypeOrDefault(mime string) string {
	if mime == "" {
		return "image/jpeg"
	}
	return mime
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ Adapter = (*GeminiGen)(nil)
