package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	token, err := SignJWT("secret", TokenClaims{Sub: "user-1", Locale: "ru", Exp: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("SignJWT error: %v", err)
	}

	claims, err := VerifyJWT("secret", token)
	if err != nil {
		t.Fatalf("VerifyJWT error: %v", err)
	}
	if claims.Sub != "user-1" || claims.Locale != "ru" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	valid, _ := SignJWT("secret", TokenClaims{Sub: "user-1", Exp: time.Now().Add(time.Hour).Unix()})
	expired, _ := SignJWT("secret", TokenClaims{Sub: "user-1", Exp: time.Now().Add(-time.Minute).Unix()})
	noSub, _ := SignJWT("secret", TokenClaims{Exp: time.Now().Add(time.Hour).Unix()})

	cases := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", valid},
		{"garbage", "secret", "not.a.token.at.all"},
		{"two parts", "secret", "a.b"},
		{"expired", "secret", expired},
		{"missing subject", "secret", noSub},
		{"tampered payload", "secret", tamper(valid)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := VerifyJWT(tc.secret, tc.token); err == nil {
				t.Fatal("expected verification failure")
			}
		})
	}
}

func tamper(token string) string {
	parts := strings.Split(token, ".")
	parts[1] = parts[1] + "x"
	return strings.Join(parts, ".")
}

func TestAuthMiddleware(t *testing.T) {
	var gotUser string
	handler := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid token passes", func(t *testing.T) {
		token, _ := SignJWT("secret", TokenClaims{Sub: "user-9", Exp: time.Now().Add(time.Hour).Unix()})
		req := httptest.NewRequest(http.MethodGet, "/time-machine/balance", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
		if gotUser != "user-9" {
			t.Fatalf("user id = %q", gotUser)
		}
	})

	t.Run("missing header rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/time-machine/balance", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("forged token rejected", func(t *testing.T) {
		token, _ := SignJWT("other-secret", TokenClaims{Sub: "user-9", Exp: time.Now().Add(time.Hour).Unix()})
		req := httptest.NewRequest(http.MethodGet, "/time-machine/balance", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}
