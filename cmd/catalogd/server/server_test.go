package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atlanticdynamic/catalogd/internal/config"
	"github.com/atlanticdynamic/catalogd/internal/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRunnables(t *testing.T) {
	t.Parallel()

	t.Run("grpc and http", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewDefault()
		cfg.GRPC.Listen = "tcp://127.0.0.1:0"
		cfg.HTTP.Listen = "127.0.0.1:0"

		runnables, err := Runnables(t.Context(), discard, cfg)
		require.NoError(t, err)
		require.Len(t, runnables, 3)
		assert.Equal(t, "compiler.Runner", runnables[0].String())
		assert.Equal(t, "masterrpc.Runner", runnables[1].String())
		assert.True(t, strings.HasPrefix(runnables[2].String(), "masterhttp.Server"))
	})

	t.Run("grpc only", func(t *testing.T) {
		t.Parallel()
		runnables, err := Runnables(t.Context(), discard, config.NewDefault())
		require.NoError(t, err)
		assert.Len(t, runnables, 2)
	})

	t.Run("local mode is rejected", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewDefault()
		cfg.Mode = "local"
		_, err := Runnables(t.Context(), discard, cfg)
		assert.ErrorIs(t, err, ErrLocalMode)
	})

	t.Run("bad listen address", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewDefault()
		cfg.GRPC.Listen = "udp://127.0.0.1:0"
		_, err := Runnables(t.Context(), discard, cfg)
		assert.Error(t, err)
	})
}

func TestRun(t *testing.T) {
	root := testutil.WriteSiteManifest(t, afero.NewOsFs(), t.TempDir())
	addr := testutil.GetRandomListeningPort(t)

	cfg := config.NewDefault()
	cfg.Manifest = root
	cfg.GRPC.Listen = "unix://" + filepath.Join(t.TempDir(), "catalogd.sock")
	cfg.HTTP.Listen = addr

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, discard, cfg) }()

	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/freshness")
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		return err == nil && resp.StatusCode == http.StatusOK && string(body) != "0"
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Contains(t, string(body), `catalogd_compiles_total{outcome="success"}`)
	assert.Contains(t, string(body), "go_goroutines")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop within timeout")
	}
}
