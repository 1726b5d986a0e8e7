package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpopts "github.com/kart-io/paperqa/pkg/options/server/http"
)

type fakeServer struct {
	name     string
	startErr error
	started  bool
	stopped  bool
}

func (f *fakeServer) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeServer) Stop(ctx context.Context) error {
	f.stopped = true
	return nil
}

func (f *fakeServer) Name() string { return f.name }

func TestHTTPServer_StartAndStop(t *testing.T) {
	opts := httpopts.NewOptions()
	opts.Addr = "127.0.0.1:0" // 随机端口，避免端口冲突

	s := NewHTTPServer(opts)
	s.Engine().GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(stopCtx))
}

func TestHTTPServer_StartFailsOnBadAddr(t *testing.T) {
	opts := httpopts.NewOptions()
	opts.Addr = "256.256.256.256:99999"

	s := NewHTTPServer(opts)
	assert.Error(t, s.Start(context.Background()))
}

func TestManager_StartStopOrder(t *testing.T) {
	m := NewManager(nil)
	a := &fakeServer{name: "a"}
	b := &fakeServer{name: "b"}
	m.Add(a)
	m.Add(b)

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	assert.True(t, a.started)
	assert.True(t, b.started)

	require.NoError(t, m.Stop(ctx))
	assert.True(t, a.stopped)
	assert.True(t, b.stopped)
}

func TestManager_PartialStartFailureRollsBack(t *testing.T) {
	m := NewManager(nil)
	a := &fakeServer{name: "a"}
	b := &fakeServer{name: "b", startErr: errors.New("bind failed")}
	m.Add(a)
	m.Add(b)

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
	assert.True(t, a.stopped, "already started servers must be stopped on failure")
}

func TestManager_DoubleStart(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))
}
