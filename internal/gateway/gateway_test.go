package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testLog() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func TestAuthorizer_GrantsOnExactPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(map[string]string{"message": "Autorizado"})
	}))
	defer srv.Close()

	a := NewAuthorizer(srv.URL, time.Second, testLog())
	assert.True(t, a.Authorize(context.Background()))
}

func TestAuthorizer_DeniesOnAnythingElse(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"wrong message": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"message": "Negado"})
		},
		"missing message": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		},
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("Autorizado"))
		},
	}
	for name, handler := range cases {
		srv := httptest.NewServer(handler)
		a := NewAuthorizer(srv.URL, time.Second, testLog())
		assert.False(t, a.Authorize(context.Background()), name)
		srv.Close()
	}
}

// An unreachable authorizer must never count as approval.
func TestAuthorizer_FailClosedWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	a := NewAuthorizer(srv.URL, time.Second, testLog())
	assert.False(t, a.Authorize(context.Background()))
}

func TestAuthorizer_DeniesOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]string{"message": "Autorizado"})
	}))
	defer srv.Close()

	a := NewAuthorizer(srv.URL, 50*time.Millisecond, testLog())
	assert.False(t, a.Authorize(context.Background()))
}

func TestNotifier_PayloadAndSuccessShapes(t *testing.T) {
	payee := uuid.New()
	var got notifyPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{"message": true})
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, time.Second, testLog())
	assert.True(t, n.Notify(context.Background(), payee, decimal.RequireFromString("100.00")))
	assert.Equal(t, payee.String(), got.PayeeID)
	assert.Equal(t, "100.00", got.Amount)
}

func TestNotifier_AcceptsStringTrue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message": "true"})
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, time.Second, testLog())
	assert.True(t, n.Notify(context.Background(), uuid.New(), decimal.New(1, 0)))
}

func TestNotifier_FailureShapes(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"message false": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"message": false})
		},
		"wrong string": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"message": "delivered"})
		},
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	for name, handler := range cases {
		srv := httptest.NewServer(handler)
		n := NewNotifier(srv.URL, time.Second, testLog())
		assert.False(t, n.Notify(context.Background(), uuid.New(), decimal.New(1, 0)), name)
		srv.Close()
	}
}

func TestNotifier_FailsWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	n := NewNotifier(srv.URL, time.Second, testLog())
	assert.False(t, n.Notify(context.Background(), uuid.New(), decimal.New(1, 0)))
}
