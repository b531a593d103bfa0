package main_test

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinary compiles the probeql binary into t.TempDir().
func buildBinary(t *testing.T) string {
	t.Helper()
	binName := "probeql"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	bin := filepath.Join(t.TempDir(), binName)
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Dir = filepath.Join(projectRoot(t), "cmd", "probeql")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(out))
	return bin
}

// projectRoot walks up from this file's directory to the one holding go.mod.
func projectRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, parent, dir, "could not find project root")
		dir = parent
	}
}

// createJavaFixture creates a repo with a .git dir, one Java file and a
// query document. Returns the repo path.
func createJavaFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))

	src := `package com.x;

import java.security.MessageDigest;

public class App {
    public static byte[] hash(byte[] data) throws Exception {
        MessageDigest md = MessageDigest.getInstance("SHA-256");
        return md.digest(data);
    }
}
`
	javaDir := filepath.Join(dir, "src", "com", "x")
	require.NoError(t, os.MkdirAll(javaDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(javaDir, "App.java"), []byte(src), 0o644))

	query := `target: methods
predicate:
  calls: {ref: "java/security/MessageDigest.digest"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "query.yaml"), []byte(query), 0o644))
	return dir
}

type envelope struct {
	Command    string          `json:"command"`
	Results    json.RawMessage `json:"results"`
	TotalCount *int            `json:"total_count"`
	Error      string          `json:"error"`
}

func run(t *testing.T, bin, dir string, args ...string) (envelope, error) {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	var env envelope
	require.NoError(t, json.Unmarshal(out, &env), "stdout: %s", string(out))
	return env, err
}

func TestCLI_IndexPlanCandidatesApply(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createJavaFixture(t)

	env, err := run(t, bin, fixture, "index", fixture)
	require.NoError(t, err)
	assert.Equal(t, "index", env.Command)
	var stats struct {
		Indexed int `json:"indexed"`
	}
	require.NoError(t, json.Unmarshal(env.Results, &stats))
	assert.Equal(t, 1, stats.Indexed)
	_, err = os.Stat(filepath.Join(fixture, ".probeql", "index.db"))
	require.NoError(t, err)

	env, err = run(t, bin, fixture, "plan", "query.yaml")
	require.NoError(t, err)
	var summary struct {
		XrefBacked bool `json:"xref_backed"`
		StaticOnly bool `json:"static_only"`
	}
	require.NoError(t, json.Unmarshal(env.Results, &summary))
	assert.True(t, summary.XrefBacked)
	assert.True(t, summary.StaticOnly)

	env, err = run(t, bin, fixture, "candidates", "query.yaml")
	require.NoError(t, err)
	var rows []struct {
		Label string `json:"label"`
	}
	require.NoError(t, json.Unmarshal(env.Results, &rows))
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0].Label, "com/x/App.hash")

	results := `[{"method": "com/x/App.hash([B)[B", "instructionCount": 40,
  "calls": [{"sequence": 1, "pc": 3, "owner": "java/security/MessageDigest", "name": "digest", "desc": "([B)[B"}]},
 {"method": "com/x/App.other()V", "instructionCount": 5}]`
	resultsPath := filepath.Join(fixture, "results.json")
	require.NoError(t, os.WriteFile(resultsPath, []byte(results), 0o644))

	env, err = run(t, bin, fixture, "apply", "query.yaml", "--results", resultsPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(env.Results, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "com/x/App.hash([B)[B", rows[0].Label)
}

func TestCLI_CandidatesWithoutIndexFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createJavaFixture(t)

	env, err := run(t, bin, fixture, "candidates", "query.yaml")
	require.Error(t, err)
	assert.Equal(t, "candidates", env.Command)
	assert.Contains(t, env.Error, "no xref index")
}
