// Package image contains the remote generation provider adapters. Two
// structurally different providers hide behind one Adapter interface: one
// resolved by polling a listing endpoint, the other by a signed callback.
package image

import (
	"context"

	"server/internal/domain"
)

// CompletionStyle declares how a provider delivers terminal outcomes.
type CompletionStyle string

const (
	// CompletionStylePolling providers are advanced by calling Poll, which
	// performs a remote status query.
	CompletionStylePolling CompletionStyle = "polling"
	// CompletionStyleWebhook providers push their outcome to the webhook
	// endpoint. Poll on these adapters never contacts the provider and
	// only ever reports a processing outcome; callers that want progress
	// must wait for the callback.
	CompletionStyleWebhook CompletionStyle = "webhook"
)

// SourceImage is the uploaded photo handed to a provider.
type SourceImage struct {
	Data     []byte
	Filename string
	MIME     string
}

// SubmitResult is what a provider returns when it accepts a task.
// Outcome is usually processing; poll-style providers may answer
// synchronously with a completed or failed outcome.
type SubmitResult struct {
	ExternalTaskID string
	Outcome        domain.Outcome
}

// Adapter is the capability contract for a generation provider. Submit and
// Poll errors are transport or contract failures, distinct from a
// provider-reported failed outcome; the caller decides whether to fail the
// job or leave it processing.
type Adapter interface {
	Name() string
	CompletionStyle() CompletionStyle
	Submit(ctx context.Context, prompt string, src SourceImage) (*SubmitResult, error)
	Poll(ctx context.Context, externalTaskID string) (domain.Outcome, error)
}

// CredentialSource supplies provider API keys at call time, so rotated keys
// take effect without rebuilding adapters.
type CredentialSource interface {
	Get(ctx context.Context, key string) (string, error)
}

// StaticCredentials is a CredentialSource over a fixed map, used in tests and
// minimal deployments without a settings table.
type StaticCredentials map[string]string

func (s StaticCredentials) Get(_ context.Context, key string) (string, error) {
	return s[key], nil
}
