package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "config.json"))
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	c := testConfig(t)
	require.NoError(t, c.Load())

	_, err := os.Stat(c.filePath)
	require.NoError(t, err)

	s := c.Snapshot()
	assert.Equal(t, DefaultPort, s.Port)
	assert.Equal(t, DefaultModel, s.Model)
	assert.Equal(t, DefaultOverlayPosition, s.OverlayPosition)
	assert.True(t, s.FeedbackEnabled)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"system":{"port":9000}}`), 0o600))

	c := New(path)
	require.NoError(t, c.Load())

	s := c.Snapshot()
	assert.Equal(t, 9000, s.Port)
	assert.Equal(t, DefaultModel, s.Model)
	assert.Equal(t, DefaultSensitivity, s.Sensitivity)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad port":     `{"system":{"port":99999}}`,
		"bad position": `{"overlay":{"position":"middle"}}`,
		"bad volume":   `{"audio":{"feedback_volume":3}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			assert.Error(t, New(path).Load())
		})
	}
}

func TestSettersPersist(t *testing.T) {
	c := testConfig(t)
	require.NoError(t, c.Load())

	require.NoError(t, c.SetInputDevice("USB Microphone"))
	require.NoError(t, c.SetSelectedModel("cloud"))
	require.NoError(t, c.SetVADEnabled(true))
	require.NoError(t, c.SetOverlaySize(480, 60))

	reloaded := New(c.filePath)
	require.NoError(t, reloaded.Load())

	s := reloaded.Snapshot()
	assert.Equal(t, "USB Microphone", s.InputDevice)
	assert.Equal(t, "cloud", s.Model)
	assert.True(t, s.VADEnabled)
	assert.Equal(t, 480, s.OverlayWidth)
	assert.Equal(t, 60, s.OverlayHeight)
}

func TestSettersRejectInvalidInput(t *testing.T) {
	c := testConfig(t)
	require.NoError(t, c.Load())

	assert.Error(t, c.SetOverlayPosition("center-center"))
	assert.Error(t, c.SetSensitivity(0))
	assert.Error(t, c.SetAudioFeedback(true, 1.5))
	assert.Error(t, c.SetOverlaySize(0, 50))
}

func TestSnapshotAuthHelpers(t *testing.T) {
	s := Snapshot{}
	assert.False(t, s.HasCloud())
	assert.False(t, s.HasOAuth())

	s.CloudEndpoint = "https://api.example.com/v1/audio/transcriptions"
	assert.True(t, s.HasCloud())

	s.OAuthTokenURL = "https://login.example.com/token"
	s.OAuthClientID = "id"
	assert.False(t, s.HasOAuth())
	s.OAuthClientSecret = "secret"
	assert.True(t, s.HasOAuth())
}
