package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMailerSend(t *testing.T) {
	var got sendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"em_1"}`))
	}))
	defer srv.Close()

	m, err := NewHTTPMailer(srv.URL+"/", "key-123", "Loja <loja@test.ao>")
	require.NoError(t, err)

	err = m.Send(context.Background(), Message{To: "ana@test.ao", Subject: "Olá", HTML: "<p>x</p>"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer key-123", auth)
	assert.Equal(t, []string{"ana@test.ao"}, got.To)
	assert.Equal(t, "Loja <loja@test.ao>", got.From)
	assert.Equal(t, "Olá", got.Subject)
}

func TestHTTPMailerProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"validation_error","message":"bad from"}`))
	}))
	defer srv.Close()

	m, err := NewHTTPMailer(srv.URL, "key", "x@test.ao")
	require.NoError(t, err)

	err = m.Send(context.Background(), Message{To: "ana@test.ao", Subject: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "bad from")
}

func TestHTTPMailerValidation(t *testing.T) {
	_, err := NewHTTPMailer("http://localhost", " ", "x")
	require.Error(t, err)

	m, err := NewHTTPMailer("http://localhost", "k", "x")
	require.NoError(t, err)
	require.Error(t, m.Send(context.Background(), Message{}))
}

func TestLogMailer(t *testing.T) {
	require.NoError(t, NewLogMailer(nil).Send(context.Background(), Message{To: "a@b.ao"}))
}
