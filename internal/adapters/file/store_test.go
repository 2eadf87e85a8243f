package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katlego-io/ussdflow/internal/adapters/file"
	"github.com/katlego-io/ussdflow/pkg/domain"
)

const flowV1 = `
id: banking
version: 1
nodes:
  - id: start
    kind: start
  - id: bye
    kind: end
    end:
      text: Bye
edges:
  - id: e1
    source_node_id: start
    target_node_id: bye
`

const flowV2 = `
id: banking
version: 2
nodes:
  - id: start
    kind: start
  - id: bye
    kind: end
    end:
      text: Farewell
edges:
  - id: e1
    source_node_id: start
    target_node_id: bye
`

func writeFlow(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestStore_LoadsVersions(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, "banking_v1.yaml", flowV1)
	writeFlow(t, dir, "banking_v2.yml", flowV2)
	writeFlow(t, dir, "notes.txt", "ignored")

	store, err := file.New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	latest, err := store.Get(ctx, "banking")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
	assert.Equal(t, "Farewell", latest.Nodes["bye"].End.Text)

	pinned, err := store.GetVersion(ctx, "banking", 1)
	require.NoError(t, err)
	assert.Equal(t, "Bye", pinned.Nodes["bye"].End.Text)

	_, err = store.Get(ctx, "airtime")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)

	assert.Equal(t, []string{"banking"}, store.FlowIDs())
}

func TestStore_BrokenDocumentFailsLoad(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, "ok.yaml", flowV1)
	writeFlow(t, dir, "broken.yaml", "id: broken\nversion: 1\nnodes: []\n")

	_, err := file.New(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFlowMisconfigured)
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestStore_DuplicateVersionFailsLoad(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, "a.yaml", flowV1)
	writeFlow(t, dir, "b.yaml", flowV1)

	_, err := file.New(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 1 defined twice")
}

func TestStore_MissingDirectory(t *testing.T) {
	_, err := file.New(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
