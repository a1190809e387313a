package messages

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{30 * time.Minute, "30m"},
		{30*time.Minute + 15*time.Second, "30m 15s"},
		{2*time.Hour + 5*time.Second, "2h"},
		{26*time.Hour + 3*time.Minute, "1d 2h 3m"},
		{7 * 24 * time.Hour, "7d"},
		{-time.Minute, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.in))
		})
	}
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	c := Default()

	got := c.Render("login.code_hint", map[string]string{"code": "ABC234"})
	assert.Equal(t, "Type /login ABC234 in Discord to link your account.", got)
}

func TestRenderUnknownKeyReturnsKey(t *testing.T) {
	assert.Equal(t, "no.such.key", Default().Render("no.such.key", nil))
}

func TestDefaultCatalogHasEveryKeyTheServiceUses(t *testing.T) {
	c := Default()
	for _, key := range []string{
		"prelogin.banned",
		"login.first_join.title",
		"login.first_join.subtitle",
		"login.link_text",
		"login.code_hint",
		"login.linked",
		"oauth.linked",
		"ip.unconfirmed.title",
		"ip.unconfirmed.subtitle",
		"ip.confirmed",
		"ip.rejected",
		"ip.reject_kick",
		"timeouts.login_kick",
		"timeouts.ip_kick",
	} {
		assert.True(t, c.Has(key), key)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeouts:\n  login_kick: \"Too slow, {name}\"\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Too slow, Alice", c.Render("timeouts.login_kick", map[string]string{"name": "Alice"}))
	assert.True(t, c.Has("ip.confirmed"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
