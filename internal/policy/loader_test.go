package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/consentgate/internal/consent"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoaderEmptyPathReturnsDefault(t *testing.T) {
	p, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
	assert.Equal(t, consent.DefaultBannerDelay, p.Banner.Delay)
	assert.Equal(t, consent.DefaultKeys(), p.Keys())
}

func TestLoaderLoad(t *testing.T) {
	path := writePolicy(t, `
analytics:
  property_id: G-ABC123
advertising:
  bootstrap:
    - key: pauseAdRequests
      value: 1
storage:
  decision_key: cookieConsent
  preferences_key: cookiePreferences
banner:
  delay: 1500ms
signals:
  reapply_on_load: true
  explicit_opt_in: true
`)

	p, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "G-ABC123", p.Analytics.PropertyID)
	assert.Equal(t, consent.Keys{Decision: "cookieConsent", Preferences: "cookiePreferences"}, p.Keys())
	assert.Equal(t, consent.Options{Delay: 1500 * time.Millisecond, ReapplyOnLoad: true}, p.ControllerOptions())
	assert.True(t, p.Signals.ExplicitOptIn)
	assert.Equal(t, []consent.Directive{{Key: "pauseAdRequests", Value: 1}}, p.BootstrapDirectives())
}

func TestLoaderPartialFileKeepsDefaults(t *testing.T) {
	path := writePolicy(t, "analytics:\n  property_id: G-XYZ\n")

	p, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "G-XYZ", p.Analytics.PropertyID)
	assert.Equal(t, consent.DefaultBannerDelay, p.Banner.Delay)
	assert.Equal(t, consent.DefaultKeys(), p.Keys())
	assert.False(t, p.Signals.ReapplyOnLoad)
}

func TestLoaderExpandsEnvironment(t *testing.T) {
	t.Setenv("CONSENT_TEST_PROPERTY", "G-FROMENV")
	path := writePolicy(t, "analytics:\n  property_id: ${CONSENT_TEST_PROPERTY}\n")

	p, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "G-FROMENV", p.Analytics.PropertyID)
}

func TestLoaderRejectsInvalidPolicy(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "same keys", content: "storage:\n  decision_key: k\n  preferences_key: k\n"},
		{name: "negative delay", content: "banner:\n  delay: -1s\n"},
		{name: "empty property", content: "analytics:\n  property_id: \"\"\n"},
		{name: "unset env property", content: "analytics:\n  property_id: \"${CONSENT_TEST_UNSET_VAR}\"\n"},
		{name: "bootstrap without key", content: "advertising:\n  bootstrap:\n    - value: 1\n"},
		{name: "not yaml", content: "analytics: [unclosed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(writePolicy(t, tt.content)).Load()
			assert.Error(t, err)
		})
	}
}

func TestLoaderFileNotFound(t *testing.T) {
	_, err := NewLoader("/nonexistent/path/policy.yaml").Load()
	assert.Error(t, err)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("CONSENT_TEST_A", "alpha")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "single reference", input: "id: ${CONSENT_TEST_A}", expected: "id: alpha"},
		{name: "bare dollar untouched", input: "price: $5", expected: "price: $5"},
		{name: "no references", input: "plain text", expected: "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(expandEnv([]byte(tt.input))))
		})
	}
}
