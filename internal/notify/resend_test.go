package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResendClient_Send(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"email-123"}`))
	}))
	defer srv.Close()

	c := NewResendClient("re_test", 100).WithEndpoint(srv.URL)
	id, err := c.Send(context.Background(), Message{From: "a@example.com", To: []string{"b@example.com"}, Subject: "Hi", HTML: "<p>x</p>"})
	require.NoError(t, err)
	assert.Equal(t, "email-123", id)
	assert.Equal(t, []string{"b@example.com"}, got.To)
	assert.Equal(t, "Hi", got.Subject)
}

func TestResendClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer srv.Close()

	_, err := NewResendClient("re_test", 100).WithEndpoint(srv.URL).Send(context.Background(), Message{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Code)
	assert.Contains(t, apiErr.Body, "invalid from")
}

func TestResendClient_NotConfigured(t *testing.T) {
	_, err := NewResendClient("", 0).Send(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestResendClient_CancelledWhileLimited(t *testing.T) {
	c := NewResendClient("re_test", 0.001)
	require.True(t, c.limiter.Allow(), "consume the only token")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Send(ctx, Message{})
	assert.Error(t, err)
}
