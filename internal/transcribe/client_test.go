package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxtype/voxtype/internal/config"
)

func cloudSnapshot(endpoint string) config.Snapshot {
	return config.Snapshot{
		CloudEndpoint: endpoint,
		CloudAPIKey:   "test-key",
		Language:      "en",
	}
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient(config.Snapshot{})
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

func TestTranscribeUploadsMultipartWAV(t *testing.T) {
	var gotAuth, gotLanguage string
	var gotWAV []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotLanguage = r.FormValue("language")

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()

		buf := make([]byte, wavHeaderSize)
		_, err = file.Read(buf)
		require.NoError(t, err)
		gotWAV = buf

		_ = json.NewEncoder(w).Encode(map[string]string{"text": "hello world"})
	}))
	defer srv.Close()

	c, err := NewClient(cloudSnapshot(srv.URL))
	require.NoError(t, err)

	result, err := c.Transcribe(context.Background(), []int16{1, 2, 3, 4}, 16000)
	require.NoError(t, err)

	assert.Equal(t, "hello world", result.Text)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "en", gotLanguage)
	assert.Equal(t, "RIFF", string(gotWAV[0:4]))
}

func TestTranscribeRejectsEmptyCapture(t *testing.T) {
	c, err := NewClient(cloudSnapshot("http://localhost:0"))
	require.NoError(t, err)

	_, err = c.Transcribe(context.Background(), nil, 16000)
	assert.Error(t, err)
}

func TestTranscribeSurfacesEndpointErrors(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(cloudSnapshot(srv.URL))
	require.NoError(t, err)

	_, err = c.Transcribe(context.Background(), []int16{1, 2}, 16000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model overloaded")
	assert.Equal(t, maxAttempts, requests, "server errors should be retried")
}

func TestTranscribeRecoversOnRetry(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		if requests == 1 {
			http.Error(w, "try again", http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "second time lucky"})
	}))
	defer srv.Close()

	c, err := NewClient(cloudSnapshot(srv.URL))
	require.NoError(t, err)

	result, err := c.Transcribe(context.Background(), []int16{1, 2}, 16000)
	require.NoError(t, err)
	assert.Equal(t, "second time lucky", result.Text)
	assert.Equal(t, 2, requests)
}

func TestTranscribeDoesNotRetryClientErrors(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		http.Error(w, "unsupported language", http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := NewClient(cloudSnapshot(srv.URL))
	require.NoError(t, err)

	_, err = c.Transcribe(context.Background(), []int16{1, 2}, 16000)
	require.Error(t, err)
	assert.Equal(t, 1, requests, "client errors must not be retried")
}
