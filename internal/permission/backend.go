package permission

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/clawinfra/trustcore/internal/approval"
	"github.com/clawinfra/trustcore/internal/sandbox"
)

// FileOps defines pluggable filesystem operations for tool backends.
// Adapted from the teacher's internal/orchestrator/tool_ops.go FileOps
// interface; the SSH stub the teacher carried for future remote backends
// is dropped (see DESIGN.md) since the trust core only ever mediates the
// local agent sandbox.
type FileOps interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error
	Stat(ctx context.Context, path string) (os.FileInfo, error)
	ReadDir(ctx context.Context, path string) ([]fs.DirEntry, error)
	MkdirAll(ctx context.Context, path string, perm os.FileMode) error
	Remove(ctx context.Context, path string) error
}

// ExecOps defines pluggable command execution operations.
type ExecOps interface {
	Run(ctx context.Context, cmd string, args []string, env []string, workdir string) (stdout, stderr string, exitCode int, err error)
}

// LocalFileOps implements FileOps for the local filesystem.
type LocalFileOps struct{}

func (LocalFileOps) ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (LocalFileOps) WriteFile(_ context.Context, path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (LocalFileOps) Stat(_ context.Context, path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (LocalFileOps) ReadDir(_ context.Context, path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

func (LocalFileOps) MkdirAll(_ context.Context, path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (LocalFileOps) Remove(_ context.Context, path string) error {
	return os.Remove(path)
}

// LocalExecOps implements ExecOps for local subprocess execution.
type LocalExecOps struct{}

func (LocalExecOps) Run(ctx context.Context, cmd string, args []string, env []string, workdir string) (stdout, stderr string, exitCode int, err error) {
	c := exec.CommandContext(ctx, cmd, args...)
	if workdir != "" {
		c.Dir = workdir
	}
	if len(env) > 0 {
		c.Env = append(os.Environ(), env...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	c.Stdout = &stdoutBuf
	c.Stderr = &stderrBuf

	runErr := c.Run()
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return "", "", 0, runErr
		}
	}

	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// Backend bundles FileOps + ExecOps for the sandboxed agent environment.
type Backend struct {
	File FileOps
	Exec ExecOps
}

// LocalBackend returns a Backend targeting the local machine, the only
// backend the trust core wires up.
func LocalBackend() *Backend {
	return &Backend{File: LocalFileOps{}, Exec: LocalExecOps{}}
}

// WriteFileTool is the reference "write_file" Tool: it resolves the
// requested path against root via internal/sandbox before writing through
// the backend, so a WrappedTool wrapping it exercises the full
// path-guard -> permission-check -> backend-I/O chain end to end.
type WriteFileTool struct {
	Backend *Backend
	Root    string
}

// ClassifyWriteFile is WriteFileTool's Classifier: an ask-mode denial for a
// write_file call defers to the approval coordinator with the path and the
// call's own params (content included) carried as ToolArgs.
func ClassifyWriteFile(_ string, params map[string]interface{}) (Operation, string, approval.Action) {
	path, _ := params["path"].(string)
	return OpWrite, path, approval.Action{
		Kind:     approval.ActionWrite,
		Path:     path,
		ToolArgs: params,
	}
}

func (t *WriteFileTool) Name() string { return "write_file" }

func (t *WriteFileTool) Execute(ctx context.Context, params map[string]interface{}) ([]ContentBlock, error) {
	path, _ := params["path"].(string)
	content, _ := params["content"].(string)
	cwd, _ := params["cwd"].(string)

	res, err := sandbox.ResolveSandboxPath(path, cwd, t.Root)
	if err != nil {
		return []ContentBlock{ErrorBlock(ErrCodeSandboxViolation, err.Error())}, nil
	}

	if err := t.Backend.File.MkdirAll(ctx, filepath.Dir(res.ResolvedAbsolute), 0o755); err != nil {
		return []ContentBlock{ErrorBlock(ErrCodeBackendFailure, err.Error())}, nil
	}
	if err := t.Backend.File.WriteFile(ctx, res.ResolvedAbsolute, []byte(content), 0o644); err != nil {
		return []ContentBlock{ErrorBlock(ErrCodeBackendFailure, err.Error())}, nil
	}

	return []ContentBlock{TextBlock("wrote " + res.RelativeToRoot)}, nil
}

// RunCommandTool is the reference "run_command" Tool, executing through the
// backend's ExecOps once the enforcer has cleared it.
type RunCommandTool struct {
	Backend *Backend
	Root    string
}

// ClassifyRunCommand is RunCommandTool's Classifier, carrying the call's
// command/args as ToolArgs alongside the derived Command field.
func ClassifyRunCommand(_ string, params map[string]interface{}) (Operation, string, approval.Action) {
	cmd, _ := params["command"].(string)
	return OpExec, "", approval.Action{
		Kind:     approval.ActionExec,
		Command:  cmd,
		ToolArgs: params,
	}
}

func (t *RunCommandTool) Name() string { return "run_command" }

func (t *RunCommandTool) Execute(ctx context.Context, params map[string]interface{}) ([]ContentBlock, error) {
	cmd, _ := params["command"].(string)
	if cmd == "" {
		return []ContentBlock{ErrorBlock(ErrCodeBackendFailure, "command is required")}, nil
	}
	var args []string
	if raw, ok := params["args"].([]interface{}); ok {
		for _, a := range raw {
			if s, ok := a.(string); ok {
				args = append(args, s)
			}
		}
	}

	stdout, stderr, exitCode, err := t.Backend.Exec.Run(ctx, cmd, args, nil, t.Root)
	if err != nil {
		return []ContentBlock{ErrorBlock(ErrCodeBackendFailure, err.Error())}, nil
	}
	if exitCode != 0 {
		return []ContentBlock{ErrorBlock(ErrCodeBackendFailure, stderr)}, nil
	}
	return []ContentBlock{TextBlock(stdout)}, nil
}
