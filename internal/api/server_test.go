package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-pulse/pkg/config"
	"github.com/wonny/aegis-pulse/pkg/logger"
)

func TestNew_WriteTimeoutCoversCronRun(t *testing.T) {
	cfg := &config.Config{Port: "0", Cron: config.CronConfig{RequestTimeout: 300 * time.Second}}
	s := New(cfg, logger.Nop(), http.NotFoundHandler())
	assert.Equal(t, 330*time.Second, s.httpServer.WriteTimeout)

	s = New(&config.Config{Port: "0"}, logger.Nop(), http.NotFoundHandler())
	assert.Equal(t, 15*time.Second, s.httpServer.WriteTimeout)
}

func TestServe_StopsOnCancel(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	s := New(&config.Config{Port: "0", Env: "development"}, logger.Nop(), handler)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
