package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSender_PostsForm(t *testing.T) {
	var gotTo, gotBody, gotAuth, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotTo, gotBody = r.PostForm.Get("to"), r.PostForm.Get("body")
		gotAuth, gotType = r.Header.Get("Authorization"), r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "tok", 0)
	require.NoError(t, s.Send(context.Background(), "+15550100", "Hi Jane & co"))

	assert.Equal(t, "+15550100", gotTo)
	assert.Equal(t, "Hi Jane & co", gotBody)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "application/x-www-form-urlencoded", gotType)
}

func TestWebhookSender_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewWebhookSender(srv.URL, "", 0).Send(context.Background(), "+15550100", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestWebhookSender_NotConfigured(t *testing.T) {
	err := NewWebhookSender("", "", 0).Send(context.Background(), "+15550100", "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
