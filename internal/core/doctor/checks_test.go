package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/kiln/internal/core/config"
	"github.com/colonyops/kiln/internal/data/db"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	return &cfg
}

func TestConfigCheck_Valid(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv(cfg.LLM.APIKeyEnv, "secret")

	result := NewConfigCheck(cfg, "").Run(context.Background())

	assert.Equal(t, "Configuration", result.Name)
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusPass, result.Items[0].Status)
}

func TestConfigCheck_FieldErrorsAndWarnings(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv(cfg.LLM.APIKeyEnv, "")
	cfg.Prompts.System = "{{ .Tree"

	result := NewConfigCheck(cfg, "").Run(context.Background())

	require.Len(t, result.Items, 2)
	assert.Equal(t, "prompts.system", result.Items[0].Label)
	assert.Equal(t, StatusFail, result.Items[0].Status)
	assert.Equal(t, StatusWarn, result.Items[1].Status)
	assert.Contains(t, result.Items[1].Label, cfg.LLM.APIKeyEnv)
}

func TestModelCheck_Gemini(t *testing.T) {
	orig := lookupEnv
	t.Cleanup(func() { lookupEnv = orig })

	cfg := testConfig(t)

	lookupEnv = func(string) (string, bool) { return "", false }
	result := NewModelCheck(cfg).Run(context.Background())
	require.Len(t, result.Items, 2)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, StatusFail, result.Items[1].Status)
	assert.Equal(t, cfg.LLM.APIKeyEnv, result.Items[1].Label)

	lookupEnv = func(string) (string, bool) { return "secret", true }
	result = NewModelCheck(cfg).Run(context.Background())
	require.Len(t, result.Items, 2)
	assert.Equal(t, StatusPass, result.Items[1].Status)
}

func TestModelCheck_Script(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = config.ProviderScript
	cfg.LLM.ScriptFile = "replies.yaml"

	result := NewModelCheck(cfg).Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)

	script := "replies:\n  - text: hello\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, "replies.yaml"), []byte(script), 0o644))

	result = NewModelCheck(cfg).Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusPass, result.Items[0].Status)
}

func TestStorageCheck(t *testing.T) {
	dir := t.TempDir()
	database, err := db.Open(dir, db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	result := NewStorageCheck(database.Conn(), filepath.Join(dir, db.FileName)).Run(context.Background())

	require.Len(t, result.Items, 2)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, "integrity", result.Items[1].Label)
	assert.Equal(t, StatusPass, result.Items[1].Status)
}

type fakeHistory struct {
	ids     []string
	deleted []string
	err     error
}

func (f *fakeHistory) Workspaces(context.Context) ([]string, error) { return f.ids, f.err }

func (f *fakeHistory) DeleteWorkspace(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func TestWorkspacesCheck_Orphans(t *testing.T) {
	workspaces := []WorkspaceInfo{
		{ID: "a", Name: "shop", Version: 3, Files: 4},
		{ID: "b", Name: "blog", Version: 1, Files: 1, Pending: 1},
	}
	history := &fakeHistory{ids: []string{"a", "gone"}}

	result := NewWorkspacesCheck(workspaces, history, false).Run(context.Background())

	require.Len(t, result.Items, 3)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, "v3, 4 file(s)", result.Items[0].Detail)
	assert.Equal(t, StatusWarn, result.Items[1].Status)
	assert.Contains(t, result.Items[1].Detail, "awaiting approval")
	assert.Equal(t, "history gone", result.Items[2].Label)
	assert.True(t, result.Items[2].Fixable)
	assert.Equal(t, StatusWarn, result.Items[2].Status)
	assert.Empty(t, history.deleted)
}

func TestWorkspacesCheck_Fix(t *testing.T) {
	history := &fakeHistory{ids: []string{"gone"}}

	result := NewWorkspacesCheck(nil, history, true).Run(context.Background())

	require.Len(t, result.Items, 2)
	assert.Equal(t, "none created", result.Items[0].Detail)
	assert.Equal(t, StatusPass, result.Items[1].Status)
	assert.Equal(t, []string{"gone"}, history.deleted)
	assert.Zero(t, Summarize([]Result{result}).Fixable)
}

func TestWorkspacesCheck_HistoryError(t *testing.T) {
	history := &fakeHistory{err: errors.New("disk gone")}

	result := NewWorkspacesCheck(nil, history, false).Run(context.Background())

	require.Len(t, result.Items, 2)
	assert.Equal(t, StatusFail, result.Items[1].Status)
	assert.Equal(t, "disk gone", result.Items[1].Detail)
}
