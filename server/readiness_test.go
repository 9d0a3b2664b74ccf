package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingwithjoel/fwj-api/kvstore"
)

func TestReadyzMemoryStore(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ready", decodeBody(t, rr)["status"])
}

func TestReadyzRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	store := kvstore.NewRedis(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = store.Close() })

	env := newTestEnv(t)
	env.deps.KV = store
	h := NewMux(context.Background(), env.deps)
	env.handler = h

	rr := env.do(http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rr.Code)

	mr.Close()
	rr = env.do(http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, "kv_store", body["failed_check"])
}

func TestReadyzStoreDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.deps.KV = nil
	env.handler = NewMux(context.Background(), env.deps)
	rr := env.do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}
