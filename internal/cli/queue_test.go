package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/outbox/internal/store"
)

// failEntry moves entry id to failed, as a rejected drain would.
func failEntry(t *testing.T, db string, id int64) {
	t.Helper()
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.MarkSyncing(ctx, id))
	require.NoError(t, st.MarkFailed(ctx, id, "REJECTED: entry 1 (recordSale): remote reported success=false"))
}

func TestEnqueue_Text(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "enqueue", "recordSale", "--args", `{"amount":1250,"currency":"EUR"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Enqueued recordSale as entry 1")

	_, err = os.Stat(env.db)
	require.NoError(t, err, "database directory is created on demand")
}

func TestEnqueue_JSON(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "--format", "json", "enqueue", "ping", "--args", "null")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   EnqueueResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(1), resp.Data.ID)
	assert.Equal(t, "ping", resp.Data.Command)
	assert.Len(t, resp.Data.IdempotencyKey, 36, "UUID key")
}

func TestEnqueue_InvalidArgs(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "enqueue", "recordSale", "--args", `{"amount":`)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E_INVALID_ARGS]: invalid --args JSON")

	_, statErr := os.Stat(env.db)
	assert.True(t, os.IsNotExist(statErr), "nothing written on invalid args")
}

func TestEnqueue_BlankCommand(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "enqueue", "  ")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrInvalidCommand)
}

func TestEnqueue_Catalog(t *testing.T) {
	env := newTestEnv(t)
	catalogPath := filepath.Join(env.dir, "catalog.cue")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`
commands: {
	recordSale: close({
		amount: int & >0
	})
}
`), 0644))
	env.writeConfig(t, "catalog = \""+filepath.ToSlash(catalogPath)+"\"\n")

	_, err := env.run(t, "enqueue", "recordSale", "--args", `{"amount":5}`)
	require.NoError(t, err)

	out, err := env.run(t, "enqueue", "recordSale", "--args", `{"amount":-5}`)
	require.Error(t, err)
	assert.Contains(t, out, "args rejected by catalog")

	out, err = env.run(t, "enqueue", "refund", "--args", `{}`)
	require.Error(t, err)
	assert.Contains(t, out, `command "refund" is not in the catalog`)

	out, err = env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Total:   1")
}

func TestList(t *testing.T) {
	env := newTestEnv(t)

	for _, args := range []string{`{"amount":1}`, `{"amount":2}`, `{"amount":3}`} {
		_, err := env.run(t, "enqueue", "recordSale", "--args", args)
		require.NoError(t, err)
	}
	failEntry(t, env.db, 2)

	out, err := env.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, `{"amount":3}`)
	assert.Contains(t, out, "entry 2: REJECTED")

	out, err = env.run(t, "--format", "json", "list", "--status", "failed")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   []struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, int64(2), resp.Data[0].ID)
	assert.Equal(t, "failed", resp.Data[0].Status)
}

func TestList_Empty(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No entries.")
}

func TestList_InvalidStatus(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "list", "--status", "done")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRequeue(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "enqueue", "recordSale", "--args", `{"amount":1}`)
	require.NoError(t, err)

	out, err := env.run(t, "requeue", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Entry 1 unchanged (status pending)")

	failEntry(t, env.db, 1)

	out, err = env.run(t, "requeue", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Entry 1 requeued")

	out, err = env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Pending: 1")
	assert.Contains(t, out, "Failed:  0")
}

func TestRequeue_Errors(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "requeue", "42")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, out, "entry 42 not found")

	_, err = env.run(t, "requeue", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid entry id "abc"`)
}

func TestStatus_JSON(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "enqueue", "ping")
	require.NoError(t, err)

	out, err := env.run(t, "--format", "json", "status")
	require.NoError(t, err)

	var resp struct {
		Data StatusResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.Pending)
	assert.Equal(t, 1, resp.Data.Counts.Total())
	assert.Equal(t, env.db, resp.Data.Database)
}
