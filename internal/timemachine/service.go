// Package timemachine orchestrates photo transformation jobs: it debits the
// credit ledger, submits work to a generation provider, and drives each job
// to a terminal outcome through either caller-initiated reconciliation or
// provider callbacks. All state advancement is request-driven; there is no
// background poller.
package timemachine

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra/settings"
	"server/internal/providers/image"
	"server/internal/providers/prompt"
)

// Settings resolves runtime-overridable configuration values.
type Settings interface {
	Get(ctx context.Context, key string) (string, error)
}

// Service wires the photo repository, ledger, and provider adapters together.
type Service struct {
	photos   domain.PhotoRepository
	ledger   domain.LedgerRepository
	adapters map[string]image.Adapter
	settings Settings
	cost     int
	logger   zerolog.Logger
}

// NewService creates the orchestration service. adapters is keyed by provider
// name; cost is the ledger amount charged per transformation.
func NewService(
	photos domain.PhotoRepository,
	ledger domain.LedgerRepository,
	adapters map[string]image.Adapter,
	runtimeSettings Settings,
	cost int,
	logger zerolog.Logger,
) *Service {
	return &Service{
		photos:   photos,
		ledger:   ledger,
		adapters: adapters,
		settings: runtimeSettings,
		cost:     cost,
		logger:   logger,
	}
}

// SubmitRequest carries one transformation submission.
type SubmitRequest struct {
	OwnerID     string
	OriginalURL string
	Upload      image.SourceImage
	TargetYear  int
	// Mode is optional; the runtime default applies when empty.
	Mode domain.TransformMode
}

// Submit debits one credit, records the job, and hands it to the configured
// provider. Provider errors do not propagate: the job comes back failed with
// the credit already refunded, so the caller always receives a job from a
// successful debit onward.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*domain.TimePhoto, error) {
	mode, err := s.resolveMode(ctx, req.Mode)
	if err != nil {
		return nil, err
	}

	adapter, err := s.activeAdapter(ctx)
	if err != nil {
		return nil, err
	}

	promptText, styleLabel := prompt.Build(req.TargetYear, mode)

	photo := &domain.TimePhoto{
		ID:           uuid.NewString(),
		OwnerID:      req.OwnerID,
		OriginalURL:  req.OriginalURL,
		TargetYear:   req.TargetYear,
		Mode:         mode,
		StyleApplied: styleLabel,
		PromptUsed:   promptText,
		Provider:     adapter.Name(),
		Status:       domain.PhotoStatusProcessing,
		Cost:         s.cost,
	}

	if err := s.photos.CreateWithDebit(ctx, photo); err != nil {
		return nil, err
	}

	result, err := adapter.Submit(ctx, promptText, req.Upload)
	if err != nil {
		// A transient blip at submit time must not cost the user a
		// credit: fail the job, which refunds in the same transaction.
		s.logger.Error().Err(err).Str("photo_id", photo.ID).Str("provider", adapter.Name()).
			Msg("provider submit failed")
		return s.failPhoto(ctx, photo, fmt.Sprintf("API request failed: %v", err))
	}

	if err := s.photos.AttachExternalID(ctx, photo.ID, result.ExternalTaskID); err != nil {
		s.logger.Error().Err(err).Str("photo_id", photo.ID).Msg("attach external id failed")
		return s.failPhoto(ctx, photo, fmt.Sprintf("failed to record provider task: %v", err))
	}
	photo.ExternalTaskID = result.ExternalTaskID

	if result.Outcome.Terminal() {
		updated, _, err := s.photos.Transition(ctx, photo.ID, result.Outcome)
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	s.logger.Info().Str("photo_id", photo.ID).Str("provider", adapter.Name()).
		Str("external_task_id", result.ExternalTaskID).Msg("transformation submitted")
	return photo, nil
}

// Reconcile is the caller-initiated status check. For poll-style providers it
// queries the remote task and applies the outcome; for webhook-style
// providers the local record is already the whole truth. Poll failures fail
// the job and refund, so credit never stays stuck against a job that cannot
// resolve.
func (s *Service) Reconcile(ctx context.Context, photoID, callerID string) (*domain.TimePhoto, error) {
	photo, err := s.photos.GetByID(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if photo.OwnerID != callerID {
		return nil, domain.ErrNotOwner
	}
	if photo.Status.Terminal() {
		return photo, nil
	}

	adapter, ok := s.adapters[photo.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrProviderFailure, photo.Provider)
	}
	if adapter.CompletionStyle() == image.CompletionStyleWebhook {
		// Completion arrives via callback; polling would learn nothing.
		return photo, nil
	}

	if photo.ExternalTaskID == "" {
		// Submission never reached the provider; the job can never
		// resolve on its own.
		return s.failPhoto(ctx, photo, "no provider task id recorded")
	}

	outcome, err := adapter.Poll(ctx, photo.ExternalTaskID)
	if err != nil {
		s.logger.Warn().Err(err).Str("photo_id", photo.ID).Msg("provider poll failed")
		return s.failPhoto(ctx, photo, fmt.Sprintf("Poll error: %v", err))
	}
	if !outcome.Terminal() {
		return photo, nil
	}

	updated, changed, err := s.photos.Transition(ctx, photo.ID, outcome)
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info().Str("photo_id", photo.ID).Str("status", string(updated.Status)).
			Msg("transformation reconciled")
	}
	return updated, nil
}

// Get returns a photo after verifying ownership.
func (s *Service) Get(ctx context.Context, photoID, callerID string) (*domain.TimePhoto, error) {
	photo, err := s.photos.GetByID(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if photo.OwnerID != callerID {
		return nil, domain.ErrNotOwner
	}
	return photo, nil
}

// Balance returns the owner's current credit balance.
func (s *Service) Balance(ctx context.Context, ownerID string) (int, error) {
	return s.ledger.Balance(ctx, ownerID)
}

// HistoryPage is one page of an owner's transformation history.
type HistoryPage struct {
	Items   []domain.TimePhoto
	Total   int
	Page    int
	PerPage int
	Pages   int
}

// History lists the owner's photos, newest first.
func (s *Service) History(ctx context.Context, ownerID string, page, perPage int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	items, total, err := s.photos.ListByOwner(ctx, ownerID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   int(math.Ceil(float64(total) / float64(perPage))),
	}, nil
}

// Config reports the active provider, default mode, and the localized mode
// catalog.
type Config struct {
	Provider string            `json:"provider"`
	Mode     string            `json:"mode"`
	Modes    []prompt.ModeInfo `json:"modes"`
}

// ActiveConfig resolves the current runtime configuration.
func (s *Service) ActiveConfig(ctx context.Context, locale string) (*Config, error) {
	adapter, err := s.activeAdapter(ctx)
	if err != nil {
		return nil, err
	}
	mode, err := s.resolveMode(ctx, "")
	if err != nil {
		return nil, err
	}
	return &Config{
		Provider: adapter.Name(),
		Mode:     string(mode),
		Modes:    prompt.Modes(locale),
	}, nil
}

func (s *Service) failPhoto(ctx context.Context, photo *domain.TimePhoto, detail string) (*domain.TimePhoto, error) {
	updated, _, err := s.photos.Transition(ctx, photo.ID, domain.Failed(detail))
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) activeAdapter(ctx context.Context) (image.Adapter, error) {
	name, err := s.settings.Get(ctx, settings.KeyProvider)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = "geminigen"
	}
	adapter, ok := s.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrProviderFailure, name)
	}
	return adapter, nil
}

func (s *Service) resolveMode(ctx context.Context, requested domain.TransformMode) (domain.TransformMode, error) {
	if requested != "" {
		if !prompt.ValidMode(requested) {
			return "", fmt.Errorf("unsupported mode %q", requested)
		}
		return requested, nil
	}
	configured, err := s.settings.Get(ctx, settings.KeyDefaultMode)
	if err != nil {
		return "", err
	}
	mode := domain.TransformMode(configured)
	if !prompt.ValidMode(mode) {
		mode = domain.TransformModeFullVintage
	}
	return mode, nil
}
