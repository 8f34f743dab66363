package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/outbox/internal/remote"
	"github.com/roach88/outbox/internal/store"
)

// fakeServer answers health checks and commands. Commands named "fail"
// get a 500, "reject" gets success=false, everything else succeeds.
type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	commands []string
	keys     []string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/commands/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		fs.mu.Lock()
		fs.commands = append(fs.commands, name)
		fs.keys = append(fs.keys, r.Header.Get(remote.IdempotencyKeyHeader))
		fs.mu.Unlock()

		switch name {
		case "fail":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "reject":
			fmt.Fprint(w, `{"success":false}`)
		default:
			fmt.Fprint(w, `{"success":true}`)
		}
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) received() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.commands...)
}

func (e *testEnv) useServer(t *testing.T, url string) {
	t.Helper()
	e.writeConfig(t, "server_url = \""+url+"\"\ninvoke_timeout = \"5s\"\n")
}

func TestSync_DeliversInOrderAndIsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	srv := newFakeServer(t)
	env.useServer(t, srv.URL)

	for _, name := range []string{"recordSale", "reject", "fail", "ping"} {
		_, err := env.run(t, "enqueue", name)
		require.NoError(t, err)
	}

	out, err := env.run(t, "sync")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 entr(ies) failed")
	assert.Contains(t, out, "Sync Summary: 4 attempted, 2 succeeded, 2 failed")
	assert.Contains(t, out, "Pending: 0")

	assert.Equal(t, []string{"recordSale", "reject", "fail", "ping"}, srv.received())
	for _, key := range srv.keys {
		assert.NotEmpty(t, key, "every request carries its idempotency key")
	}

	out, err = env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Failed:  2")
	assert.Contains(t, out, "Total:   2")

	out, err = env.run(t, "list", "--status", "failed")
	require.NoError(t, err)
	assert.Contains(t, out, "REJECTED")
	assert.Contains(t, out, "REMOTE_FAILURE")
}

func TestSync_AllSucceedJSON(t *testing.T) {
	env := newTestEnv(t)
	srv := newFakeServer(t)
	env.useServer(t, srv.URL)

	_, err := env.run(t, "enqueue", "recordSale", "--args", `{"amount":1}`)
	require.NoError(t, err)

	out, err := env.run(t, "--format", "json", "sync")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   SyncResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Report.Attempted)
	assert.Equal(t, 1, resp.Data.Report.Succeeded)
	assert.Equal(t, 0, resp.Data.Report.Pending)
}

func TestSync_NothingPending(t *testing.T) {
	env := newTestEnv(t)
	srv := newFakeServer(t)
	env.useServer(t, srv.URL)

	out, err := env.run(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to sync.")
	assert.Empty(t, srv.received())
}

func TestSync_OfflineAttemptsNothing(t *testing.T) {
	env := newTestEnv(t)
	srv := newFakeServer(t)
	url := srv.URL
	srv.Close()
	env.useServer(t, url)

	_, err := env.run(t, "enqueue", "recordSale")
	require.NoError(t, err)

	out, err := env.run(t, "sync")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_OFFLINE]")
	assert.Contains(t, out, "nothing attempted")

	out, err = env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Pending: 1")
}

func TestSync_ResetsInterruptedEntries(t *testing.T) {
	env := newTestEnv(t)
	srv := newFakeServer(t)
	env.useServer(t, srv.URL)

	_, err := env.run(t, "enqueue", "recordSale")
	require.NoError(t, err)

	st, err := store.Open(env.db)
	require.NoError(t, err)
	require.NoError(t, st.MarkSyncing(context.Background(), 1))
	require.NoError(t, st.Close())

	out, err := env.run(t, "--format", "json", "sync")
	require.NoError(t, err)

	var resp struct {
		Data SyncResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, int64(1), resp.Data.Reset)
	assert.Equal(t, 1, resp.Data.Report.Succeeded)
	assert.True(t, strings.HasPrefix(resp.Data.Server, "http://127.0.0.1:"))
}
