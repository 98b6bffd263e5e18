package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudadept/cloudadept-api/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "CloudAdept API", cfg.AppName)
	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, 10*time.Second, cfg.Delivery.Timeout)
	assert.Equal(t, "CloudAdept Admin", cfg.Delivery.RecipientLabel)
	assert.Equal(t, "Asia/Kolkata", cfg.Delivery.Location.String())
	assert.Equal(t, 5*time.Minute, cfg.DedupeTTL)
	assert.Equal(t, 30*time.Minute, cfg.FormIdleTTL)
	assert.Equal(t, 5, cfg.RateLimitMax)
	assert.Equal(t, 20, cfg.FormMountLimit)
	assert.Equal(t, 1000, cfg.FormMaxActive)
	assert.Equal(t, 30*time.Second, cfg.StreamKeepAlive)
	assert.Equal(t, "https://www.cloudadeptsystems.com", cfg.Site.URL)
}

func TestLoadAcceptsSiteBuildVariableNames(t *testing.T) {
	t.Setenv("VITE_EMAILJS_SERVICE_ID", " service_abc ")
	t.Setenv("VITE_EMAILJS_TEMPLATE_ID", "template_xyz")
	t.Setenv("CLOUDADEPT_EMAILJS_PUBLIC_KEY", "pk_123")
	t.Setenv("CLOUDADEPT_APP_PORT", ":9090")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "service_abc", cfg.Delivery.ServiceID)
	assert.Equal(t, "template_xyz", cfg.Delivery.TemplateID)
	assert.Equal(t, "pk_123", cfg.Delivery.PublicKey)
	assert.Empty(t, cfg.Delivery.PrivateKey)
	assert.Equal(t, ":9090", cfg.HTTPAddress())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("duration", func(t *testing.T) {
		t.Setenv("CLOUDADEPT_EMAILJS_TIMEOUT", "soon")
		_, err := config.Load()
		require.Error(t, err)
	})

	t.Run("timezone", func(t *testing.T) {
		t.Setenv("CLOUDADEPT_CONTACT_TIMEZONE", "Mars/Olympus")
		_, err := config.Load()
		require.Error(t, err)
	})
}
