package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivechat/realtime/core/config"
)

type serverSettings struct {
	Addr         string        `env:"TEST_CFG_ADDR" envDefault:":9000"`
	PingInterval time.Duration `env:"TEST_CFG_PING" envDefault:"30s"`
	Debug        bool          `env:"TEST_CFG_DEBUG" envDefault:"false"`
}

type requiredSettings struct {
	Secret string `env:"TEST_CFG_REQUIRED_SECRET,required"`
}

type cachedSettings struct {
	Value string `env:"TEST_CFG_CACHED" envDefault:"first"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg serverSettings
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.False(t, cfg.Debug)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TEST_CFG_REQUIRED_SECRET", "s3cret")

	var cfg requiredSettings
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "s3cret", cfg.Secret)
}

func TestLoad_CachesPerType(t *testing.T) {
	t.Setenv("TEST_CFG_CACHED", "first")

	var first cachedSettings
	require.NoError(t, config.Load(&first))
	require.Equal(t, "first", first.Value)

	// The environment changed, but the type was already loaded.
	t.Setenv("TEST_CFG_CACHED", "second")
	var second cachedSettings
	require.NoError(t, config.Load(&second))
	assert.Equal(t, "first", second.Value)
}

func TestLoad_NilTarget(t *testing.T) {
	t.Parallel()

	var cfg *serverSettings
	require.Error(t, config.Load(cfg))
}
