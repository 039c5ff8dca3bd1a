package timemachine

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/providers/image"
)

func newWebhookFixture(t *testing.T, secret string) (*Service, *memStore, *stubAdapter) {
	t.Helper()
	store := newMemStore()
	store.balances["alice"] = 1
	adapter := &stubAdapter{
		name:         "kie",
		style:        image.CompletionStyleWebhook,
		submitResult: &image.SubmitResult{ExternalTaskID: "kie-task-1", Outcome: domain.Processing()},
	}
	cfg := stubSettings{
		"TIME_MACHINE_PROVIDER": "kie",
		"KIE_WEBHOOK_HMAC_KEY":  secret,
	}
	svc := NewService(store, store, map[string]image.Adapter{"kie": adapter}, cfg, 1, zerolog.Nop())
	if _, err := svc.Submit(context.Background(), submitReq("alice")); err != nil {
		t.Fatalf("seed submit: %v", err)
	}
	return svc, store, adapter
}

func signTask(secret, taskID, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(taskID + "." + timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookCompletesJob(t *testing.T) {
	svc, store, _ := newWebhookFixture(t, "")

	body := []byte(`{"code":200,"data":{"taskId":"kie-task-1","resultUrls":["https://kie.example.com/done.png"]}}`)
	ack, err := svc.HandleWebhook(context.Background(), "kie", body, "", "")
	if err != nil {
		t.Fatalf("HandleWebhook error: %v", err)
	}
	if ack.Status != AckProcessed {
		t.Fatalf("ack = %q", ack.Status)
	}

	photo, err := store.FindByExternalID(context.Background(), "kie", "kie-task-1")
	if err != nil {
		t.Fatalf("find photo: %v", err)
	}
	if photo.Status != domain.PhotoStatusCompleted || photo.ResultURL != "https://kie.example.com/done.png" {
		t.Fatalf("photo = %+v", photo)
	}
	if balance, _ := store.Balance(context.Background(), "alice"); balance != 0 {
		t.Fatalf("balance = %d, completion keeps the debit", balance)
	}
}

func TestWebhookFailureRefundsOnce(t *testing.T) {
	svc, store, _ := newWebhookFixture(t, "")

	body := []byte(`{"code":501,"msg":"generation failed","data":{"taskId":"kie-task-1"}}`)
	ack, err := svc.HandleWebhook(context.Background(), "kie", body, "", "")
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if ack.Status != AckProcessed {
		t.Fatalf("first ack = %q", ack.Status)
	}

	// Redelivery of the same callback must acknowledge without a second
	// transition or refund.
	ack, err = svc.HandleWebhook(context.Background(), "kie", body, "", "")
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if ack.Status != AckAlreadyProcessed {
		t.Fatalf("redelivery ack = %q", ack.Status)
	}

	photo, _ := store.FindByExternalID(context.Background(), "kie", "kie-task-1")
	if photo.Status != domain.PhotoStatusFailed || photo.ErrorMessage != "generation failed" {
		t.Fatalf("photo = %+v", photo)
	}
	if balance, _ := store.Balance(context.Background(), "alice"); balance != 1 {
		t.Fatalf("balance = %d, want exactly one refund", balance)
	}
	if store.refundOps != 1 {
		t.Fatalf("refundOps = %d", store.refundOps)
	}
}

func TestWebhookWithoutResultFailsJob(t *testing.T) {
	svc, store, _ := newWebhookFixture(t, "")

	body := []byte(`{"code":200,"data":{"taskId":"kie-task-1"}}`)
	ack, err := svc.HandleWebhook(context.Background(), "kie", body, "", "")
	if err != nil {
		t.Fatalf("HandleWebhook error: %v", err)
	}
	if ack.Status != AckProcessed {
		t.Fatalf("ack = %q", ack.Status)
	}

	photo, _ := store.FindByExternalID(context.Background(), "kie", "kie-task-1")
	if photo.Status != domain.PhotoStatusFailed {
		t.Fatalf("a terminal callback with no result must fail the job: %+v", photo)
	}
	if balance, _ := store.Balance(context.Background(), "alice"); balance != 1 {
		t.Fatalf("balance = %d", balance)
	}
}

func TestWebhookUnknownTaskIgnored(t *testing.T) {
	svc, store, _ := newWebhookFixture(t, "")

	body := []byte(`{"code":200,"data":{"taskId":"somebody-elses-task","resultUrls":["https://kie.example.com/x.png"]}}`)
	ack, err := svc.HandleWebhook(context.Background(), "kie", body, "", "")
	if err != nil {
		t.Fatalf("HandleWebhook error: %v", err)
	}
	if ack.Status != AckIgnored {
		t.Fatalf("ack = %q", ack.Status)
	}

	photo, _ := store.FindByExternalID(context.Background(), "kie", "kie-task-1")
	if photo.Status != domain.PhotoStatusProcessing {
		t.Fatalf("unrelated callback must not touch the job: %+v", photo)
	}
}

func TestWebhookMalformedPayload(t *testing.T) {
	svc, _, _ := newWebhookFixture(t, "")

	cases := []struct {
		name string
		body string
	}{
		{"not json", `{"code":`},
		{"no task id", `{"code":200,"data":{"resultUrls":["https://kie.example.com/x.png"]}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.HandleWebhook(context.Background(), "kie", []byte(tc.body), "", "")
			if !errors.Is(err, domain.ErrMalformedCallback) {
				t.Fatalf("err = %v, want ErrMalformedCallback", err)
			}
		})
	}
}

func TestWebhookSignatureVerification(t *testing.T) {
	const secret = "shared-secret"
	body := []byte(`{"code":200,"data":{"taskId":"kie-task-1","resultUrls":["https://kie.example.com/done.png"]}}`)

	t.Run("valid signature accepted", func(t *testing.T) {
		svc, _, _ := newWebhookFixture(t, secret)
		ts := "1735689600"
		ack, err := svc.HandleWebhook(context.Background(), "kie", body, ts, signTask(secret, "kie-task-1", ts))
		if err != nil {
			t.Fatalf("HandleWebhook error: %v", err)
		}
		if ack.Status != AckProcessed {
			t.Fatalf("ack = %q", ack.Status)
		}
	})

	t.Run("wrong signature rejected", func(t *testing.T) {
		svc, store, _ := newWebhookFixture(t, secret)
		ts := "1735689600"
		_, err := svc.HandleWebhook(context.Background(), "kie", body, ts, signTask("wrong-secret", "kie-task-1", ts))
		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("err = %v, want ErrInvalidSignature", err)
		}
		photo, _ := store.FindByExternalID(context.Background(), "kie", "kie-task-1")
		if photo.Status != domain.PhotoStatusProcessing {
			t.Fatalf("rejected callback must not transition the job: %+v", photo)
		}
	})

	t.Run("tampered timestamp rejected", func(t *testing.T) {
		svc, _, _ := newWebhookFixture(t, secret)
		sig := signTask(secret, "kie-task-1", "1735689600")
		_, err := svc.HandleWebhook(context.Background(), "kie", body, "1735689999", sig)
		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("err = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("missing headers skip the check", func(t *testing.T) {
		svc, _, _ := newWebhookFixture(t, secret)
		ack, err := svc.HandleWebhook(context.Background(), "kie", body, "", "")
		if err != nil {
			t.Fatalf("HandleWebhook error: %v", err)
		}
		if ack.Status != AckProcessed {
			t.Fatalf("ack = %q", ack.Status)
		}
	})
}

func TestWebhookRacesReconcileExactlyOneRefund(t *testing.T) {
	store := newMemStore()
	store.balances["alice"] = 1
	// Poll-style adapter so Reconcile actually races the callback on the
	// same job.
	adapter := &stubAdapter{
		name:         "kie",
		submitResult: &image.SubmitResult{ExternalTaskID: "kie-task-1", Outcome: domain.Processing()},
		pollOutcome:  domain.Failed("poll saw failure"),
	}
	cfg := stubSettings{"TIME_MACHINE_PROVIDER": "kie"}
	svc := NewService(store, store, map[string]image.Adapter{"kie": adapter}, cfg, 1, zerolog.Nop())

	photo, err := svc.Submit(context.Background(), submitReq("alice"))
	if err != nil {
		t.Fatalf("seed submit: %v", err)
	}

	body := []byte(`{"code":501,"msg":"callback saw failure","data":{"taskId":"kie-task-1"}}`)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = svc.Reconcile(context.Background(), photo.ID, "alice")
	}()
	go func() {
		defer wg.Done()
		_, _ = svc.HandleWebhook(context.Background(), "kie", body, "", "")
	}()
	wg.Wait()

	got, _ := store.GetByID(context.Background(), photo.ID)
	if got.Status != domain.PhotoStatusFailed {
		t.Fatalf("status = %q", got.Status)
	}
	if store.refundOps != 1 {
		t.Fatalf("refundOps = %d, concurrent resolution must refund exactly once", store.refundOps)
	}
	if balance, _ := store.Balance(context.Background(), "alice"); balance != 1 {
		t.Fatalf("balance = %d", balance)
	}
}
