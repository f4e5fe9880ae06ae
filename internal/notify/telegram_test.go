package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramNotify(t *testing.T) {
	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		gotChat = r.PostFormValue("chat_id")
		gotText = r.PostFormValue("text")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("token123", "chat456")
	tg.baseURL = srv.URL

	err := tg.Notify(context.Background(), "price drop: widget now $9.98")
	require.NoError(t, err)
	assert.Equal(t, "/bottoken123/sendMessage", gotPath)
	assert.Equal(t, "chat456", gotChat)
	assert.Equal(t, "price drop: widget now $9.98", gotText)
}

func TestTelegramNotifyNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"ok":false,"description":"rate limited"}`))
	}))
	defer srv.Close()

	tg := NewTelegram("token123", "chat456")
	tg.baseURL = srv.URL

	err := tg.Notify(context.Background(), "msg")
	assert.ErrorContains(t, err, "429")
}

func TestNopNotify(t *testing.T) {
	assert.NoError(t, Nop{}.Notify(context.Background(), "anything"))
}
