package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const maxExecOutput = 10000

// ExecTool executes shell commands with a timeout and a safety guard.
type ExecTool struct {
	BaseTool
	Timeout             int
	WorkingDir          string
	RestrictToWorkspace bool
	denyPatterns        []*regexp.Regexp
}

// NewExecTool creates an ExecTool. Timeout is in seconds.
func NewExecTool(timeout int, workingDir string, restrict bool) *ExecTool {
	if timeout <= 0 {
		timeout = 60
	}

	deny := []string{
		`\brm\s+-[rf]{1,2}\b`,
		`\bdel\s+/[fq]\b`,
		`\brmdir\s+/s\b`,
		`\b(mkfs|diskpart)\b`,
		`\bdd\s+if=`,
		`>\s*/dev/sd`,
		`\b(shutdown|reboot|poweroff)\b`,
		`:\(\)\s*\{.*\};\s*:`,
	}
	patterns := make([]*regexp.Regexp, 0, len(deny))
	for _, p := range deny {
		patterns = append(patterns, regexp.MustCompile(p))
	}

	return &ExecTool{
		Timeout:             timeout,
		WorkingDir:          workingDir,
		RestrictToWorkspace: restrict,
		denyPatterns:        patterns,
	}
}

func (t *ExecTool) Name() string { return "exec" }

func (t *ExecTool) Description() string {
	return "Execute a shell command and return its output. Use with caution."
}

func (t *ExecTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The shell command to execute",
			},
			"working_dir": map[string]interface{}{
				"type":        "string",
				"description": "Optional working directory for the command",
			},
		},
		"required": []string{"command"},
	}
}

func (t *ExecTool) Execute(args map[string]interface{}) (string, error) {
	command, ok := args["command"].(string)
	if !ok {
		return "", fmt.Errorf("command must be a string")
	}

	workingDir := t.WorkingDir
	if wd, ok := args["working_dir"].(string); ok && wd != "" {
		workingDir = wd
	}
	if workingDir == "" {
		workingDir, _ = os.Getwd()
	}

	if reason := t.guard(command); reason != "" {
		return "Error: Command blocked by safety guard (" + reason + ")", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(t.Timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = workingDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("Error: Command timed out after %d seconds", t.Timeout), nil
	}

	var result strings.Builder
	result.WriteString(stdout.String())
	if stderr.Len() > 0 {
		if result.Len() > 0 {
			result.WriteString("\nSTDERR:\n")
		}
		result.WriteString(stderr.String())
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.WriteString(fmt.Sprintf("\nExit code: %d", exitErr.ExitCode()))
		} else {
			return fmt.Sprintf("Error executing command: %v", err), nil
		}
	}

	out := result.String()
	if out == "" {
		out = "(no output)"
	}
	if len(out) > maxExecOutput {
		out = out[:maxExecOutput] + fmt.Sprintf("\n... (truncated, %d more chars)", len(out)-maxExecOutput)
	}

	return out, nil
}

func (t *ExecTool) guard(command string) string {
	lower := strings.ToLower(strings.TrimSpace(command))

	for _, pattern := range t.denyPatterns {
		if pattern.MatchString(lower) {
			return "dangerous pattern detected"
		}
	}

	if t.RestrictToWorkspace {
		if strings.Contains(command, "../") || strings.Contains(command, "..\\") {
			return "path traversal detected"
		}
	}

	return ""
}
