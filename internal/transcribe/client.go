// Package transcribe uploads captured audio to an OpenAI-compatible
// transcription endpoint and returns the recognized text.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/voxtype/voxtype/internal/config"
	"github.com/voxtype/voxtype/internal/util"
)

const (
	httpTimeout = 60 * time.Second

	// Error bodies larger than this are truncated before logging.
	maxErrorBody = 4 << 10

	// Transient failures are retried with exponential backoff.
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// ErrNoEndpoint is returned when cloud transcription is requested but no
// endpoint is configured.
var ErrNoEndpoint = errors.New("no transcription endpoint configured")

// Result is a completed transcription.
type Result struct {
	Text     string        `json:"text"`
	Duration time.Duration `json:"duration"`
}

// Client uploads WAV audio to a cloud transcription endpoint. Authentication
// is either a static bearer key or a client-credentials grant, depending on
// what the configuration provides.
type Client struct {
	endpoint   string
	apiKey     string
	language   string
	httpClient *http.Client
}

// NewClient builds a client from the configuration snapshot. OAuth
// client-credentials take precedence over the static API key when fully
// configured.
func NewClient(snap config.Snapshot) (*Client, error) {
	if !snap.HasCloud() {
		return nil, ErrNoEndpoint
	}

	base := &http.Client{Timeout: httpTimeout}
	httpClient := base
	apiKey := snap.CloudAPIKey

	if snap.HasOAuth() {
		conf := &clientcredentials.Config{
			ClientID:     snap.OAuthClientID,
			ClientSecret: snap.OAuthClientSecret,
			TokenURL:     snap.OAuthTokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = conf.Client(ctx)
		apiKey = ""
	}

	return &Client{
		endpoint:   snap.CloudEndpoint,
		apiKey:     apiKey,
		language:   snap.Language,
		httpClient: httpClient,
	}, nil
}

// Transcribe uploads 16 kHz mono PCM and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, samples []int16, sampleRate int) (*Result, error) {
	if len(samples) == 0 {
		return nil, errors.New("no audio captured")
	}

	wav, err := EncodeWAV(samples, sampleRate, 1)
	if err != nil {
		return nil, util.WrapError("encode audio", err)
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	part, err := form.CreateFormFile("file", "recording.wav")
	if err != nil {
		return nil, util.WrapError("build upload", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, util.WrapError("build upload", err)
	}
	if c.language != "" {
		if err := form.WriteField("language", c.language); err != nil {
			return nil, util.WrapError("build upload", err)
		}
	}
	if err := form.WriteField("response_format", "json"); err != nil {
		return nil, util.WrapError("build upload", err)
	}
	if err := form.Close(); err != nil {
		return nil, util.WrapError("build upload", err)
	}

	start := time.Now()
	backoff := util.NewBackoff(initialBackoff, maxBackoff)

	var text string
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			slog.Warn("retrying transcription upload", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff.Next()):
			}
		}

		var retryable bool
		text, retryable, lastErr = c.upload(ctx, form.FormDataContentType(), body.Bytes())
		if lastErr == nil {
			return &Result{Text: text, Duration: time.Since(start)}, nil
		}
		if !retryable {
			return nil, lastErr
		}
	}

	return nil, lastErr
}

// upload performs a single POST of the multipart body. The second return
// value reports whether the failure is worth retrying.
func (c *Client) upload(ctx context.Context, contentType string, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, util.WrapError("create request", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, util.WrapError("upload audio", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return "", retryable, fmt.Errorf("transcription endpoint returned %d: %s", resp.StatusCode, util.ExtractLastError(string(raw)))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", false, util.WrapError("parse response", err)
	}

	return parsed.Text, false, nil
}
