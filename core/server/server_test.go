package server_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivechat/realtime/core/server"
)

func TestNewFromConfig_RequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := server.NewFromConfig(server.Config{})
	require.ErrorIs(t, err, server.ErrMissingAddress)
}

func TestServer_RunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := server.New("127.0.0.1:0", server.WithShutdownTimeout(time.Second))
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, handler)()
	}()

	// Give the listener a moment to come up before tearing it down.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down after context cancel")
	}
}

func TestServer_StopWithoutStart(t *testing.T) {
	t.Parallel()

	srv := server.New("127.0.0.1:0")
	assert.NoError(t, srv.Stop())
}
