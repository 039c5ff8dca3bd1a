package timemachine

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"server/internal/domain"
	"server/internal/infra/settings"
	"server/internal/providers/image"
)

// Ack statuses returned to the provider. The provider stops retrying on any
// 2xx, so every recognized delivery is acknowledged, including no-ops.
const (
	AckProcessed        = "processed"
	AckAlreadyProcessed = "already_processed"
	AckIgnored          = "ignored"
)

// Ack is the minimal acknowledgement body for a provider callback.
type Ack struct {
	Status string `json:"status"`
}

// taskIDFields lists where callbacks have been observed to carry the task id.
var taskIDFields = []string{"taskId", "task_id", "uuid", "id"}

// HandleWebhook processes a provider-initiated completion callback for the
// named provider. It verifies the signature when both the shared secret and
// the signature headers are present, locates the job by the provider task id,
// and applies the outcome idempotently: redeliveries and races against a
// concurrent reconcile acknowledge without a second transition or refund.
//
// Only a missing task id or a bad signature produce errors; everything else
// is acknowledged so the provider does not retry indefinitely.
func (s *Service) HandleWebhook(ctx context.Context, provider string, body []byte, timestamp, signature string) (*Ack, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCallback, err)
	}

	taskID := findTaskID(payload)
	if taskID == "" {
		return nil, fmt.Errorf("%w: no task id", domain.ErrMalformedCallback)
	}

	if err := s.verifySignature(ctx, taskID, timestamp, signature); err != nil {
		return nil, err
	}

	photo, err := s.photos.FindByExternalID(ctx, provider, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The task may belong to an unrelated system sharing the
			// provider account.
			s.logger.Debug().Str("provider", provider).Str("external_task_id", taskID).
				Msg("callback for unknown task ignored")
			return &Ack{Status: AckIgnored}, nil
		}
		return nil, err
	}

	if photo.Status.Terminal() {
		return &Ack{Status: AckAlreadyProcessed}, nil
	}

	_, changed, err := s.photos.Transition(ctx, photo.ID, callbackOutcome(payload))
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost the race against a concurrent reconcile; the job is
		// terminal either way.
		return &Ack{Status: AckAlreadyProcessed}, nil
	}
	s.logger.Info().Str("photo_id", photo.ID).Str("provider", provider).
		Msg("transformation resolved by callback")
	return &Ack{Status: AckProcessed}, nil
}

// verifySignature recomputes HMAC-SHA256(secret, taskID + "." + timestamp)
// and compares in constant time. The check is skipped when no secret is
// configured (a deliberate operator choice) or when the provider sent no
// signature headers.
func (s *Service) verifySignature(ctx context.Context, taskID, timestamp, signature string) error {
	secret, err := s.settings.Get(ctx, settings.KeyKieWebhookSecret)
	if err != nil {
		return err
	}
	if secret == "" || signature == "" || timestamp == "" {
		return nil
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(taskID + "." + timestamp))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// callbackOutcome maps a callback payload to a terminal outcome. Callbacks
// only arrive for finished tasks, so a payload with neither a failure marker
// nor a result reference is an explicit failure, not a processing state.
func callbackOutcome(payload map[string]any) domain.Outcome {
	if detail, failed := callbackFailure(payload); failed {
		return domain.Failed(detail)
	}
	if url, ok := image.ExtractResultURL(payload); ok {
		return domain.Completed(url)
	}
	return domain.Failed("no result in callback")
}

// callbackFailure detects an explicit provider-reported failure.
func callbackFailure(payload map[string]any) (string, bool) {
	if code, ok := payload["code"].(float64); ok && int(code) != 200 {
		return failureDetail(payload), true
	}
	state := firstString(payload, "state", "status")
	if state == "" {
		if data, ok := payload["data"].(map[string]any); ok {
			state = firstString(data, "state", "status")
		}
	}
	switch state {
	case "fail", "failed", "error":
		return failureDetail(payload), true
	}
	return "", false
}

func failureDetail(payload map[string]any) string {
	if detail := firstString(payload, "error", "errorMessage", "error_message", "msg"); detail != "" {
		return detail
	}
	if data, ok := payload["data"].(map[string]any); ok {
		if detail := firstString(data, "error", "errorMessage", "error_message", "failMsg"); detail != "" {
			return detail
		}
	}
	return "generation failed on provider side"
}

func findTaskID(payload map[string]any) string {
	if id := firstString(payload, taskIDFields...); id != "" {
		return id
	}
	if data, ok := payload["data"].(map[string]any); ok {
		return firstString(data, taskIDFields...)
	}
	return ""
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
