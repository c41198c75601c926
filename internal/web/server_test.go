package web

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civistrom/civid/internal/logging"
)

func TestServerStopsOnContextCancel(t *testing.T) {
	srv := NewServer("127.0.0.1:0", logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServerBadAddr(t *testing.T) {
	srv := NewServer("not-an-addr:[", logging.NewNopLogger())
	require.Error(t, srv.Run(context.Background()))
}
