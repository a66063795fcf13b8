package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/skill"
)

type (
	// PythonSandbox executes dynamic Python code in a subprocess. The input
	// data is exposed to the script as the input_data variable; the last
	// stdout line is decoded as the JSON result when possible.
	PythonSandbox struct{}

	// BashCommander runs shell commands within the sandbox environment.
	BashCommander struct{}

	// FileManager reads, writes, and lists local files within the workspace.
	FileManager struct{}
)

func (*PythonSandbox) Definition() skill.Definition {
	return skill.Definition{
		ID:          "python_sandbox",
		Name:        "Python Sandbox Execution",
		Description: "Executes dynamic Python code securely within the isolated sandbox.",
		Category:    skill.CategoryExecution,
		Parameters: []skill.Parameter{
			{Name: "code", Type: "string", Description: "Python code to execute", Required: true},
			{Name: "input_data", Type: "object", Description: "Input data available as 'input_data' variable", Default: map[string]any{}},
			{Name: "requirements", Type: "array", Description: "List of pip packages to install", Default: []any{}},
			{Name: "timeout", Type: "integer", Description: "Execution timeout in seconds", Default: 60},
		},
		Outputs: []skill.Output{
			{Name: "result", Type: "object", Description: "Execution result"},
			{Name: "stdout", Type: "string", Description: "Standard output"},
			{Name: "stderr", Type: "string", Description: "Standard error"},
		},
		Timeout: 300 * time.Second,
		Icon:    "🐍",
		Color:   "#3776ab",
	}
}

func (p *PythonSandbox) Execute(ctx context.Context, sc *skill.Context) (res *skill.Result) {
	rec := newRecorder("Python Sandbox")
	defer rec.guard(&res)

	rec.logf("Starting execution for node %s", sc.NodeID)

	code := strInput(sc, "code", "")
	inputData := mapInput(sc, "input_data")
	if inputData == nil {
		inputData = map[string]any{}
	}
	timeout := intInput(sc, "timeout", 60)

	rec.logf("Executing code (%d chars)", len(code))

	encoded, err := json.Marshal(inputData)
	if err != nil {
		return rec.failure(nil, err.Error())
	}

	script := fmt.Sprintf("import json\ninput_data = json.loads(%q)\n\n%s", string(encoded), code)
	tmp, err := os.CreateTemp("", "sandbox-*.py")
	if err != nil {
		return rec.failure(nil, err.Error())
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(script); err != nil {
		tmp.Close()
		return rec.failure(nil, err.Error())
	}
	tmp.Close()

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, "python3", tmp.Name())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		rec.logf("Execution timed out")
		return &skill.Result{
			Status:     skill.StatusFailed,
			Error:      "Execution timed out",
			Logs:       rec.logs,
			DurationMS: rec.elapsedMS(),
		}
	}

	outText := stdout.String()
	resultData := parseTrailingJSON(outText)

	exitCode := 0
	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		exitCode = exitErr.ExitCode()
	default:
		return rec.failure(nil, runErr.Error())
	}

	rec.logf("Completed in %dms with return code %d", rec.elapsedMS(), exitCode)

	status := skill.StatusSuccess
	if exitCode != 0 {
		status = skill.StatusFailed
	}
	return &skill.Result{
		Status: status,
		Outputs: map[string]any{
			"result": resultData,
			"stdout": outText,
			"stderr": stderr.String(),
		},
		Logs:       rec.logs,
		DurationMS: rec.elapsedMS(),
	}
}

// parseTrailingJSON decodes the last non-empty stdout line as JSON, falling
// back to wrapping the full output when the line is not valid JSON.
func parseTrailingJSON(out string) any {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := lines[len(lines)-1]
	var decoded any
	if err := json.Unmarshal([]byte(last), &decoded); err != nil {
		return map[string]any{"output": out}
	}
	return decoded
}

func (*BashCommander) Definition() skill.Definition {
	return skill.Definition{
		ID:          "bash_commander",
		Name:        "Bash Commander",
		Description: "Runs shell scripts and commands within the sandbox environment.",
		Category:    skill.CategoryExecution,
		Parameters: []skill.Parameter{
			{Name: "command", Type: "string", Description: "Shell command to execute", Required: true},
			{Name: "working_dir", Type: "string", Description: "Working directory", Default: "/tmp"},
			{Name: "env", Type: "object", Description: "Environment variables", Default: map[string]any{}},
			{Name: "timeout", Type: "integer", Description: "Execution timeout in seconds", Default: 60},
		},
		Outputs: []skill.Output{
			{Name: "stdout", Type: "string", Description: "Standard output"},
			{Name: "stderr", Type: "string", Description: "Standard error"},
			{Name: "exit_code", Type: "integer", Description: "Exit code"},
		},
		Timeout: 120 * time.Second,
		Icon:    "💻",
		Color:   "#4ade80",
	}
}

func (b *BashCommander) Execute(ctx context.Context, sc *skill.Context) (res *skill.Result) {
	rec := newRecorder("Bash Commander")
	defer rec.guard(&res)

	rec.logf("Starting execution for node %s", sc.NodeID)

	command := strInput(sc, "command", "")
	workingDir := strInput(sc, "working_dir", "/tmp")
	env := mapInput(sc, "env")
	timeout := intInput(sc, "timeout", 60)

	rec.logf("Executing: %s", command)

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	cmd.Dir = workingDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%v", k, v))
	}
	for k, v := range sc.EnvVars {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	runErr := cmd.Run()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		rec.logf("Execution timed out")
		return &skill.Result{
			Status:     skill.StatusFailed,
			Error:      "Execution timed out",
			Logs:       rec.logs,
			DurationMS: rec.elapsedMS(),
		}
	}

	exitCode := 0
	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		exitCode = exitErr.ExitCode()
	default:
		return rec.failure(nil, runErr.Error())
	}

	rec.logf("Completed in %dms with exit code %d", rec.elapsedMS(), exitCode)

	status := skill.StatusSuccess
	if exitCode != 0 {
		status = skill.StatusFailed
	}
	return &skill.Result{
		Status: status,
		Outputs: map[string]any{
			"stdout":    stdout.String(),
			"stderr":    stderr.String(),
			"exit_code": exitCode,
		},
		Logs:       rec.logs,
		DurationMS: rec.elapsedMS(),
	}
}

func (*FileManager) Definition() skill.Definition {
	return skill.Definition{
		ID:          "file_manager",
		Name:        "File Manager",
		Description: "Reads, writes, and parses local files within the workspace.",
		Category:    skill.CategoryExecution,
		Parameters: []skill.Parameter{
			{Name: "operation", Type: "string", Description: "File operation to perform", Required: true, Options: []string{"read", "write", "append", "delete", "list", "exists"}},
			{Name: "path", Type: "string", Description: "File path", Required: true},
			{Name: "content", Type: "string", Description: "Content to write (for write/append)"},
			{Name: "encoding", Type: "string", Description: "File encoding", Default: "utf-8"},
		},
		Outputs: []skill.Output{
			{Name: "content", Type: "string", Description: "File content (for read)"},
			{Name: "exists", Type: "boolean", Description: "Whether file exists"},
			{Name: "files", Type: "array", Description: "List of files (for list)"},
		},
		Icon:  "📁",
		Color: "#f97316",
	}
}

func (f *FileManager) Execute(ctx context.Context, sc *skill.Context) (res *skill.Result) {
	rec := newRecorder("File Manager")
	defer rec.guard(&res)

	rec.logf("Starting operation for node %s", sc.NodeID)

	operation := strInput(sc, "operation", "read")
	path := strInput(sc, "path", "")
	content := strInput(sc, "content", "")

	// Paths are resolved inside the sandbox when one is configured.
	if sc.SandboxPath != "" && !filepath.IsAbs(path) {
		path = filepath.Join(sc.SandboxPath, path)
	}

	rec.logf("Operation: %s on %s", operation, path)

	outputs := make(map[string]any)
	switch operation {
	case "read":
		data, err := os.ReadFile(path)
		if err != nil {
			return rec.failure(nil, err.Error())
		}
		outputs["content"] = string(data)
		outputs["exists"] = true

	case "write":
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return rec.failure(nil, err.Error())
		}
		outputs["exists"] = true

	case "append":
		fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return rec.failure(nil, err.Error())
		}
		_, werr := fh.WriteString(content)
		cerr := fh.Close()
		if werr != nil {
			return rec.failure(nil, werr.Error())
		}
		if cerr != nil {
			return rec.failure(nil, cerr.Error())
		}
		outputs["exists"] = true

	case "delete":
		if err := os.Remove(path); err != nil {
			return rec.failure(nil, err.Error())
		}
		outputs["exists"] = false

	case "list":
		entries, err := os.ReadDir(path)
		if err != nil {
			return rec.failure(nil, err.Error())
		}
		files := make([]any, 0, len(entries))
		for _, e := range entries {
			files = append(files, e.Name())
		}
		outputs["files"] = files

	case "exists":
		_, err := os.Stat(path)
		outputs["exists"] = err == nil

	default:
		return rec.failure(nil, fmt.Sprintf("unknown operation: %s", operation))
	}

	rec.logf("Completed in %dms", rec.elapsedMS())
	return rec.success(outputs)
}
