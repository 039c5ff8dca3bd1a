package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
)

const kieModel = "nano-banana-pro"

// KieOptions configures the KIE adapter.
type KieOptions struct {
	BaseURL       string
	UploadURL     string
	CallbackURL   string
	Credentials   CredentialSource
	CredentialKey string
	HTTPClient    *http.Client
	SubmitTimeout time.Duration
}

// Kie is the webhook-style provider. Submit stages the photo in KIE's file
// storage, creates the task with a callback address, and always reports
// processing; the terminal outcome arrives exclusively through the webhook
// intake. Poll therefore performs no remote IO.
type Kie struct {
	httpClient    *http.Client
	baseURL       string
	uploadURL     string
	callbackURL   string
	creds         CredentialSource
	credKey       string
	submitTimeout time.Duration
}

// NewKie creates a KIE adapter.
func NewKie(opts KieOptions) *Kie {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.kie.ai"
	}
	uploadURL := opts.UploadURL
	if uploadURL == "" {
		uploadURL = "https://kieai.redpandaai.co/api/file-base64-upload"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	submitTimeout := opts.SubmitTimeout
	if submitTimeout <= 0 {
		submitTimeout = 60 * time.Second
	}
	credKey := opts.CredentialKey
	if credKey == "" {
		credKey = "KIE_API_KEY"
	}
	return &Kie{
		httpClient:    client,
		baseURL:       base,
		uploadURL:     uploadURL,
		callbackURL:   opts.CallbackURL,
		creds:         opts.Credentials,
		credKey:       credKey,
		submitTimeout: submitTimeout,
	}
}

func (k *Kie) Name() string { return "kie" }

func (k *Kie) CompletionStyle() CompletionStyle { return CompletionStyleWebhook }

// Submit uploads the source photo and creates the generation task.
func (k *Kie) Submit(ctx context.Context, prompt string, src SourceImage) (*SubmitResult, error) {
	apiKey, err := k.apiKey(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, k.submitTimeout)
	defer cancel()

	imageURL, err := k.uploadSource(ctx, apiKey, src)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"model": kieModel,
		"input": map[string]any{
			"prompt":        prompt,
			"image_input":   []string{imageURL},
			"aspect_ratio":  "1:1",
			"resolution":    "1K",
			"output_format": "png",
		},
	}
	if k.callbackURL != "" {
		payload["callBackUrl"] = k.callbackURL
	}

	body, err := k.postJSON(ctx, apiKey, k.baseURL+"/api/v1/jobs/createTask", payload)
	if err != nil {
		return nil, err
	}
	if intField(body, "code") != 200 {
		msg := stringField(body, "msg")
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("kie: API error: %s", msg)
	}
	data, _ := body["data"].(map[string]any)
	taskID := stringField(data, "taskId")
	if taskID == "" {
		return nil, errors.New("kie: response carries no task id")
	}

	// KIE never answers synchronously; the callback finishes the job.
	return &SubmitResult{ExternalTaskID: taskID, Outcome: domain.Processing()}, nil
}

// Poll reflects only local knowledge: completion for this provider is pushed
// via webhook, so from the adapter's point of view a task is processing until
// the callback lands.
func (k *Kie) Poll(_ context.Context, _ string) (domain.Outcome, error) {
	return domain.Processing(), nil
}

// uploadSource stages the photo as a base64 data URL and returns the hosted
// file URL KIE expects as generation input.
func (k *Kie) uploadSource(ctx context.Context, apiKey string, src SourceImage) (string, error) {
	mime := contentTypeOrDefault(src.MIME)
	ext := filepath.Ext(src.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(src.Data))

	payload := map[string]any{
		"base64Data": dataURL,
		"uploadPath": "time-machine",
		"fileName":   fmt.Sprintf("upload-%s%s", uuid.NewString(), ext),
	}
	body, err := k.postJSON(ctx, apiKey, k.uploadURL, payload)
	if err != nil {
		return "", err
	}

	success, _ := body["success"].(bool)
	data, _ := body["data"].(map[string]any)
	fileURL := stringField(data, "fileUrl")
	if !success || fileURL == "" {
		return "", fmt.Errorf("kie: file upload failed: %s", truncate(stringField(body, "msg"), 300))
	}
	return fileURL, nil
}

func (k *Kie) postJSON(ctx context.Context, apiKey, url string, payload map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("kie: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("kie: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kie: %w", err)
	}
	defer resp.Body.Close()

	rawResp, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("kie: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("kie: API error %d: %s", resp.StatusCode, truncate(string(rawResp), 300))
	}
	var body map[string]any
	if err := json.Unmarshal(rawResp, &body); err != nil {
		return nil, fmt.Errorf("kie: decode response: %w", err)
	}
	return body, nil
}

func (k *Kie) apiKey(ctx context.Context) (string, error) {
	key, err := k.creds.Get(ctx, k.credKey)
	if err != nil {
		return "", fmt.Errorf("kie: load api key: %w", err)
	}
	if key == "" {
		return "", errors.New("kie: api key is missing")
	}
	return key, nil
}

var _ Adapter = (*Kie)(nil)
