package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ORDER_STRICT_TRANSITIONS", "false")
	t.Setenv("NOTIFY_BASE_BACKOFF", "2s")
	t.Setenv("DELIVERY_FEE_PROVINCES", "Luanda:500, Bengo: 1500,broken")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.StrictTransitions)
	assert.Equal(t, 2*time.Second, cfg.Notify.BaseBackoff)
	assert.Equal(t, map[string]float64{"Luanda": 500, "Bengo": 1500}, cfg.DeliveryFeeProvinces)
	assert.Equal(t, "Africa/Luanda", cfg.ReportTimezone)
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("NOTIFY_WORKERS", "many")
	t.Setenv("DELIVERY_FEE_DEFAULT", "abc")

	cfg := Load()

	assert.Equal(t, 2, cfg.Notify.Workers)
	assert.Equal(t, 1500.0, cfg.DeliveryFeeDefault)
}

func TestValidate(t *testing.T) {
	t.Run("dev fills jwt secret", func(t *testing.T) {
		cfg := &Config{Env: "development", Notify: NotifyConfig{Transport: "direct", Workers: 1, MaxAttempts: 1}}
		require.NoError(t, cfg.Validate())
		assert.NotEmpty(t, cfg.JWTSecret)
	})

	t.Run("production requires jwt secret", func(t *testing.T) {
		cfg := &Config{Env: "production", Notify: NotifyConfig{Transport: "direct", Workers: 1, MaxAttempts: 1}}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET")
	})

	t.Run("unknown transport", func(t *testing.T) {
		cfg := &Config{JWTSecret: "x", Notify: NotifyConfig{Transport: "sms", Workers: 1, MaxAttempts: 1}}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NOTIFY_TRANSPORT")
	})

	t.Run("bootstrap email needs password", func(t *testing.T) {
		cfg := &Config{
			JWTSecret:      "x",
			Notify:         NotifyConfig{Transport: "direct", Workers: 1, MaxAttempts: 1},
			AdminBootstrap: AdminBootstrapConfig{Email: "admin@agriconecta.ao"},
		}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ADMIN_BOOTSTRAP_PASSWORD")
	})
}

func TestLoadAdminBootstrap(t *testing.T) {
	t.Setenv("ADMIN_BOOTSTRAP_EMAIL", " admin@agriconecta.ao ")
	t.Setenv("ADMIN_BOOTSTRAP_PASSWORD", "segredo-forte")

	cfg := Load()

	assert.Equal(t, "admin@agriconecta.ao", cfg.AdminBootstrap.Email)
	assert.Equal(t, "segredo-forte", cfg.AdminBootstrap.Password)
	assert.Equal(t, "Administrador", cfg.AdminBootstrap.Name)
}
