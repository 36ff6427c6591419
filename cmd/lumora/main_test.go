package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/lumora/internal/errs"
)

func TestValidateFormat_AcceptsJSONAndText(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
}

func TestValidateFormat_RejectsUnknownFormat(t *testing.T) {
	t.Parallel()
	err := validateFormat("yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yaml")
}

func TestResolveTargetDir_DefaultsToCurrentDirectory(t *testing.T) {
	t.Parallel()
	dir, err := resolveTargetDir(nil)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(dir))
}

func TestResolveTargetDir_RejectsMissingPath(t *testing.T) {
	t.Parallel()
	_, err := resolveTargetDir([]string{"/definitely/does/not/exist/anywhere"})
	assert.Error(t, err)
}

func TestResolveTargetDir_RejectsRegularFile(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "not-a-dir.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := resolveTargetDir([]string{file})
	assert.Error(t, err)
}

func TestFindRepoRoot_StopsAtGitDirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	assert.Equal(t, root, findRepoRoot(nested))
}

func TestFindRepoRoot_FallsBackToStartDirWhenNoGitFound(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	assert.Equal(t, dir, findRepoRoot(dir))
}

func TestResolveStateDir_DefaultsToDotLumoraUnderRepoRoot(t *testing.T) {
	t.Setenv("LUMORA_STATE_DIR", "")
	assert.Equal(t, filepath.Join("/repo", ".lumora"), resolveStateDir("/repo"))
}

func TestResolveStateDir_HonorsAbsoluteEnvOverride(t *testing.T) {
	t.Setenv("LUMORA_STATE_DIR", "/custom/state")
	assert.Equal(t, "/custom/state", resolveStateDir("/repo"))
}

func TestResolveStateDir_HonorsRelativeEnvOverride(t *testing.T) {
	t.Setenv("LUMORA_STATE_DIR", "state")
	assert.Equal(t, filepath.Join("/repo", "state"), resolveStateDir("/repo"))
}

func TestResolveDBPath_DefaultsToGraphDBUnderStateDir(t *testing.T) {
	t.Setenv("LUMORA_STATE_DIR", "")
	old := flagDB
	flagDB = ""
	defer func() { flagDB = old }()

	assert.Equal(t, filepath.Join("/repo", ".lumora", "graph.db"), resolveDBPath("/repo"))
}

func TestResolveDBPath_HonorsAbsoluteFlagOverride(t *testing.T) {
	old := flagDB
	flagDB = "/elsewhere/graph.db"
	defer func() { flagDB = old }()

	assert.Equal(t, "/elsewhere/graph.db", resolveDBPath("/repo"))
}

func TestResolveDBPath_HonorsRelativeFlagOverride(t *testing.T) {
	old := flagDB
	flagDB = "custom.db"
	defer func() { flagDB = old }()

	assert.Equal(t, filepath.Join("/repo", "custom.db"), resolveDBPath("/repo"))
}

func TestExitCodeFor_MapsErrorKindsToDocumentedCodes(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 2, exitCodeFor(errs.Wrap(errs.KindParse, "extract", errors.New("bad syntax"))))
	assert.Equal(t, 2, exitCodeFor(errs.Wrap(errs.KindStore, "commit", errors.New("constraint"))))
	assert.Equal(t, 3, exitCodeFor(errs.Wrap(errs.KindIO, "open", errors.New("disk full"))))
	assert.Equal(t, 1, exitCodeFor(errors.New("plain user error")))
}
