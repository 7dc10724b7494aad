package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/xtal-lab/xtal/internal/evaluation"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, verbose = "", false
	evalFormat, evalTimeout = formatText, 0
	migrateDown = false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestEval_TextKeepsArgumentOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeScript(t, dir, "a.js", "1 + 1;")
	b := writeScript(t, dir, "b.js", "// b\n\"b\" + \"\";")

	out, err := execute(t, "eval", a, b)
	require.NoError(t, err)
	require.Equal(t, "==> "+a+" <==\n2\n\n==> "+b+" <==\n\nb\n", out)
}

func TestEval_JSON(t *testing.T) {
	path := writeScript(t, t.TempDir(), "x.js", "[1, 2];")

	out, err := execute(t, "eval", "--format", "json", path)
	require.NoError(t, err)

	var results []fileOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Equal(t, []fileOutcome{{
		File:   path,
		Result: "[1, 2]\n",
		Errors: []string{},
		State:  evaluation.StateCompleted,
	}}, results)
}

func TestEval_YAML(t *testing.T) {
	path := writeScript(t, t.TempDir(), "x.js", "\"y\" + \"\";")

	out, err := execute(t, "eval", "-f", "yaml", path)
	require.NoError(t, err)

	var results []fileOutcome
	require.NoError(t, yaml.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	require.Equal(t, "y\n", results[0].Result)
	require.Equal(t, evaluation.StateCompleted, results[0].State)
}

func TestEval_ScriptErrorsFailTheCommand(t *testing.T) {
	path := writeScript(t, t.TempDir(), "bad.js", "const = ;")

	out, err := execute(t, "eval", path)
	require.ErrorIs(t, err, errScriptErrors)
	require.Contains(t, out, "error: SyntaxError")
}

func TestEval_Timeout(t *testing.T) {
	path := writeScript(t, t.TempDir(), "loop.js", "while (true) {}")

	out, err := execute(t, "eval", "--timeout", "100ms", path)
	require.ErrorIs(t, err, errScriptErrors)
	require.True(t, strings.Contains(out, "error: "), out)
}

func TestEval_Flags(t *testing.T) {
	_, err := execute(t, "eval", "--format", "xml", "x.js")
	require.ErrorContains(t, err, "unsupported --format")

	_, err = execute(t, "eval", filepath.Join(t.TempDir(), "missing.js"))
	require.ErrorContains(t, err, "failed to read")
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	_, err := execute(t, "migrate")
	require.ErrorContains(t, err, "migrate requires storage.type")
}

func TestOpenStore_FileBackend(t *testing.T) {
	cfgPath := writeScript(t, t.TempDir(), "xtal.yaml", "storage:\n  type: file\n  path: \""+t.TempDir()+"\"\n")
	_, err := execute(t, "--config", cfgPath, "migrate")
	require.ErrorContains(t, err, `got "file"`)

	repo, release, err := openStore(cfg.Storage)
	require.NoError(t, err)
	defer release()
	require.NoError(t, repo.Ping(t.Context()))
}

func TestWriteOutcomes_TimedOut(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutcomes(&buf, formatText, []fileOutcome{{
		File:   "x.js",
		Errors: []string{"TimeoutError: evaluation exceeded 1s"},
		State:  evaluation.StateTimedOut,
	}}))
	require.Equal(t, "error: TimeoutError: evaluation exceeded 1s\n(timed out)\n", buf.String())
}
