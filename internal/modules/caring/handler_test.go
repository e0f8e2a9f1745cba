package caring

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/garyellow/eyecare-linebot-go/internal/album"
	domerrors "github.com/garyellow/eyecare-linebot-go/internal/errors"
	"github.com/garyellow/eyecare-linebot-go/internal/logger"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAlbumServer(t *testing.T, status int, body string) *album.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/album/xmJXFMT/images", r.URL.Path)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	return album.NewClient(album.Config{
		ClientID:     "cid",
		APIBaseURL:   srv.URL,
		ImageBaseURL: "https://imgur.com/",
		Picker:       func(n int) int { return n - 1 },
	})
}

func TestHandleMessage(t *testing.T) {
	t.Parallel()
	client := newAlbumServer(t, http.StatusOK, `{"data":[{"id":"A"},{"id":"B"},{"id":"C"}],"success":true}`)
	h := NewHandler(client, "xmJXFMT", "貼心叮嚀", logger.NewWithWriter("error", io.Discard))

	require.True(t, h.CanHandle("貼心叮嚀"))
	msgs, err := h.HandleMessage(context.Background(), "貼心叮嚀")
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	img, ok := msgs[0].(*messaging_api.ImageMessage)
	require.True(t, ok)
	assert.Equal(t, "https://imgur.com/C.jpg", img.OriginalContentUrl)
	assert.Equal(t, img.OriginalContentUrl, img.PreviewImageUrl)
}

func TestHandleMessageFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"data":[]}`},
		{"malformed json", http.StatusOK, `{"data":[`},
		{"empty album", http.StatusOK, `{"data":[]}`},
		{"no data", http.StatusOK, `{"success":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newAlbumServer(t, tt.status, tt.body)
			h := NewHandler(client, "xmJXFMT", "貼心叮嚀", logger.NewWithWriter("error", io.Discard))

			msgs, err := h.HandleMessage(context.Background(), "貼心叮嚀")
			assert.Nil(t, msgs)
			require.Error(t, err)
			assert.Equal(t, TextImageError, domerrors.GetUserMessage(err))
			assert.True(t, errors.Is(err, domerrors.ErrExternalFetch))
		})
	}
}
