package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOfMissingFileStartsEmpty(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.NoError(t, m.Load())
	assert.Empty(t, m.Repositories())
	assert.Equal(t, "", m.DefaultAlias())
}

func TestSaveThenLoadRoundTripsRepositories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	m, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, m.Load())

	require.NoError(t, m.PutRepository(RepositoryConfig{
		Alias: "main", URL: "https://repo.example.org", VerifyTLS: true, RetryCount: 5,
	}))
	require.NoError(t, m.SetDefaultAlias("main"))
	require.NoError(t, m.Save())

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, reloaded.Load())

	repo, ok := reloaded.Repository("main")
	require.True(t, ok)
	assert.Equal(t, "https://repo.example.org", repo.URL)
	assert.True(t, repo.VerifyTLS)
	assert.Equal(t, 5, repo.RetryCount)
	assert.Equal(t, "main", reloaded.DefaultAlias())
}

func TestPutRepositoryReplacesExistingAlias(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.NoError(t, m.Load())

	require.NoError(t, m.PutRepository(RepositoryConfig{Alias: "main", URL: "https://a.example.org"}))
	require.NoError(t, m.PutRepository(RepositoryConfig{Alias: "main", URL: "https://b.example.org"}))

	assert.Len(t, m.Repositories(), 1)
	repo, _ := m.Repository("main")
	assert.Equal(t, "https://b.example.org", repo.URL)
}

func TestRemoveRepositoryClearsDefaultAlias(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.NoError(t, m.Load())

	require.NoError(t, m.PutRepository(RepositoryConfig{Alias: "main", URL: "https://a.example.org"}))
	require.NoError(t, m.SetDefaultAlias("main"))
	require.NoError(t, m.RemoveRepository("main"))

	assert.Equal(t, "", m.DefaultAlias())
	_, ok := m.Repository("main")
	assert.False(t, ok)
}

func TestSetDefaultAliasRejectsUnknownAlias(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.NoError(t, m.Load())

	assert.Error(t, m.SetDefaultAlias("does-not-exist"))
}

func TestVariablesRoundTripPerDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	m, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, m.Load())

	m.SetVariable("/work/project", "record_id", []string{"abc123"})
	require.NoError(t, m.Save())

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, reloaded.Load())

	vars := reloaded.Variables("/work/project")
	assert.Equal(t, []string{"abc123"}, vars["record_id"])
}

func TestDeleteVariableRemovesBinding(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.NoError(t, m.Load())

	m.SetVariable("/work", "record_id", []string{"abc123"})
	m.DeleteVariable("/work", "record_id")

	_, ok := m.Variables("/work")["record_id"]
	assert.False(t, ok)
}
