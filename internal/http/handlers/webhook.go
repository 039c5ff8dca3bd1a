package handlers

import (
	"errors"
	"io"
	"net/http"

	"server/internal/domain"
)

const maxWebhookBytes = 1 << 20

// KieWebhook receives completion callbacks from KIE. The route carries no
// user authentication; authenticity rests on the HMAC signature check inside
// the service. A bad signature is the one case that refuses the request.
// Everything else is acknowledged so the provider stops retrying.
func (a *App) KieWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read body")
		return
	}

	ack, err := a.TimeMachine.HandleWebhook(
		r.Context(),
		"kie",
		body,
		r.Header.Get("X-Timestamp"),
		r.Header.Get("X-Signature"),
	)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignature):
			a.error(w, http.StatusUnauthorized, "invalid_signature", "signature mismatch")
		case errors.Is(err, domain.ErrMalformedCallback):
			a.error(w, http.StatusBadRequest, "bad_request", "unparseable callback payload")
		default:
			a.Logger.Error().Err(err).Msg("webhook handling failed")
			a.error(w, http.StatusInternalServerError, "internal", "callback processing failed")
		}
		return
	}

	a.json(w, http.StatusOK, ack)
}
