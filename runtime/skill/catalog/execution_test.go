package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/skill"
)

func TestBashCommanderRunsCommand(t *testing.T) {
	b := &BashCommander{}
	res := b.Execute(context.Background(), &skill.Context{
		NodeID: "node_1",
		Inputs: map[string]any{
			"command":     "echo hello",
			"working_dir": t.TempDir(),
		},
	})

	require.Equal(t, skill.StatusSuccess, res.Status)
	require.Equal(t, "hello\n", res.Outputs["stdout"])
	require.Equal(t, 0, res.Outputs["exit_code"])
}

func TestBashCommanderReportsExitCode(t *testing.T) {
	b := &BashCommander{}
	res := b.Execute(context.Background(), &skill.Context{
		NodeID: "node_1",
		Inputs: map[string]any{
			"command":     "exit 3",
			"working_dir": t.TempDir(),
		},
	})

	require.Equal(t, skill.StatusFailed, res.Status)
	require.Equal(t, 3, res.Outputs["exit_code"])
}

func TestBashCommanderEnvVars(t *testing.T) {
	b := &BashCommander{}
	res := b.Execute(context.Background(), &skill.Context{
		NodeID:  "node_1",
		EnvVars: map[string]string{"GREETING": "hi"},
		Inputs: map[string]any{
			"command":     "echo $GREETING $EXTRA",
			"working_dir": t.TempDir(),
			"env":         map[string]any{"EXTRA": "there"},
		},
	})

	require.Equal(t, skill.StatusSuccess, res.Status)
	require.Equal(t, "hi there\n", res.Outputs["stdout"])
}

func TestFileManagerRoundTrip(t *testing.T) {
	f := &FileManager{}
	sandbox := t.TempDir()
	sc := func(inputs map[string]any) *skill.Context {
		return &skill.Context{NodeID: "node_1", SandboxPath: sandbox, Inputs: inputs}
	}

	res := f.Execute(context.Background(), sc(map[string]any{
		"operation": "write",
		"path":      "note.txt",
		"content":   "first",
	}))
	require.Equal(t, skill.StatusSuccess, res.Status)

	res = f.Execute(context.Background(), sc(map[string]any{
		"operation": "append",
		"path":      "note.txt",
		"content":   " second",
	}))
	require.Equal(t, skill.StatusSuccess, res.Status)

	res = f.Execute(context.Background(), sc(map[string]any{
		"operation": "read",
		"path":      "note.txt",
	}))
	require.Equal(t, skill.StatusSuccess, res.Status)
	require.Equal(t, "first second", res.Outputs["content"])

	res = f.Execute(context.Background(), sc(map[string]any{
		"operation": "list",
		"path":      ".",
	}))
	require.Equal(t, skill.StatusSuccess, res.Status)
	require.Equal(t, []any{"note.txt"}, res.Outputs["files"])

	res = f.Execute(context.Background(), sc(map[string]any{
		"operation": "exists",
		"path":      "note.txt",
	}))
	require.Equal(t, true, res.Outputs["exists"])

	res = f.Execute(context.Background(), sc(map[string]any{
		"operation": "delete",
		"path":      "note.txt",
	}))
	require.Equal(t, skill.StatusSuccess, res.Status)
	_, err := os.Stat(filepath.Join(sandbox, "note.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestFileManagerReadMissingFails(t *testing.T) {
	f := &FileManager{}
	res := f.Execute(context.Background(), &skill.Context{
		NodeID:      "node_1",
		SandboxPath: t.TempDir(),
		Inputs:      map[string]any{"operation": "read", "path": "missing.txt"},
	})
	require.Equal(t, skill.StatusFailed, res.Status)
}

func TestFileManagerUnknownOperation(t *testing.T) {
	f := &FileManager{}
	res := f.Execute(context.Background(), &skill.Context{
		NodeID: "node_1",
		Inputs: map[string]any{"operation": "compress", "path": "x"},
	})
	require.Equal(t, skill.StatusFailed, res.Status)
	require.Equal(t, "unknown operation: compress", res.Error)
}

func TestParseTrailingJSON(t *testing.T) {
	require.Equal(t, map[string]any{"answer": float64(42)}, parseTrailingJSON("warming up\n{\"answer\": 42}\n"))
	require.Equal(t, map[string]any{"output": "plain text\n"}, parseTrailingJSON("plain text\n"))
}
