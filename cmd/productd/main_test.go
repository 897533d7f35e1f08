package main

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/scorebill/productfetch/internal/config"
)

func TestRun_InvalidUpstream(t *testing.T) {
	cfg := &config.Config{}

	err := run(cfg, zerolog.Nop())
	require.EqualError(t, err, "base url is required")
}

func TestRun_InvalidBatchConfig(t *testing.T) {
	t.Setenv(config.HostedEnv, "")

	cfg := &config.Config{}
	cfg.Upstream.BaseURL = "http://upstream.test"
	cfg.Upstream.Action = "productSearchPopularByCategory"
	cfg.Upstream.Timeout = time.Second

	err := run(cfg, zerolog.Nop())
	require.EqualError(t, err, "default_concurrency must be > 0 (got 0)")
}
