package pushrelay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardPostsBodyVerbatim(t *testing.T) {
	var gotBody []byte
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	f := NewForwarder()
	err := f.Forward(context.Background(), srv.URL, []byte{0x01, 0x02, 0xff}, "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0xff}, gotBody)
	assert.Equal(t, "application/octet-stream", gotType)
}

func TestForwardReportsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	f := NewForwarder()
	err := f.Forward(context.Background(), srv.URL, []byte("x"), "")
	assert.ErrorContains(t, err, "410")
}

func TestForwardUnreachableEndpoint(t *testing.T) {
	f := NewForwarder()
	err := f.Forward(context.Background(), "http://127.0.0.1:1/up", []byte("x"), "")
	assert.Error(t, err)
}
