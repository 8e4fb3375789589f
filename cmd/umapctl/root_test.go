package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/hupe1980/umapgo/matio"
	"github.com/hupe1980/umapgo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its standard output
// and error output.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := NewRootCmd()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()

	return stdout.String(), stderr.String(), err
}

// writeClustered writes a clustered count×dim matrix and returns its path.
func writeClustered(t *testing.T, count, dim int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "points.npy")
	data := testutil.NewRNG(7).ClusteredMatrix(count, dim, 3, 0.2)
	require.NoError(t, matio.SaveFloat32(path, data, count, dim))

	return path
}

func TestRootCommand_Help(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "umapctl")
	assert.Contains(t, out, "embed")
	assert.Contains(t, out, "knn")
	assert.Contains(t, out, "eval")
	assert.Contains(t, out, "version")
	assert.Contains(t, out, "--log-level")
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "umapctl dev")
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	_, _, err := execute(t, "version", "--config", "/nonexistent/umapctl.yaml")
	require.Error(t, err)
	assert.Equal(t, CodeConfigLoadReadFailure, codeOf(err))
}

func TestRootCommand_InvalidLogFormat(t *testing.T) {
	path := writeClustered(t, 20, 3)

	_, _, err := execute(t, "knn", path, "--index", "0", "--log-format", "xml")
	require.Error(t, err)
	assert.Equal(t, CodeConfigValidateInvalidValue, codeOf(err))
}

func TestRootCommand_LogLevelFromEnv(t *testing.T) {
	t.Setenv("UMAPGO_LOG_LEVEL", "debug")

	path := writeClustered(t, 20, 3)

	_, stderr, err := execute(t, "knn", path, "--index", "0", "-k", "3", "--set", "method=vptree")
	require.NoError(t, err)
	assert.Contains(t, stderr, "query completed")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeCLIInputInvalid, codeOf(errorf(CodeCLIInputInvalid, "bad")))
	assert.Equal(t, Code(""), codeOf(assert.AnError))
	assert.NoError(t, wrapf(nil, CodeCLIInputInvalid, "nothing"))
}
