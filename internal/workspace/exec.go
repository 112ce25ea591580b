// ABOUTME: Shell command execution and git-based change review
// ABOUTME: Runs commands in the selected workspace and summarizes git status

package workspace

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExecResult carries the output of one shell command.
type ExecResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"returncode"`
}

// Execute runs a shell command in the given directory, defaulting to the
// current workspace. A non-zero exit code is reported in the result, not
// as an error.
func (m *Manager) Execute(ctx context.Context, command, dir string) (*ExecResult, error) {
	if dir == "" {
		dir = m.Current()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("running command: %w", err)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	m.logger.Debug("command executed", "dir", dir, "exit_code", result.ExitCode)
	return result, nil
}

// ReviewResult is the verdict for one changed file.
type ReviewResult struct {
	File   string   `json:"file"`
	Status string   `json:"status"`
	Issues []string `json:"issues"`
}

// ReviewSummary aggregates the per-file verdicts.
type ReviewSummary struct {
	Total    int `json:"total"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
}

// ReviewReport is the output of a workspace review.
type ReviewReport struct {
	Results []ReviewResult `json:"results"`
	Summary ReviewSummary  `json:"summary"`
}

// Review inspects uncommitted changes in the workspace via git status.
// Modified files get a warning status; anything else is ok. A workspace
// that is not a git repository yields an empty report.
func (m *Manager) Review(ctx context.Context, dir string) *ReviewReport {
	if dir == "" {
		dir = m.Current()
	}

	cmd := exec.CommandContext(ctx, "git", "status", "--porcelain")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return &ReviewReport{Results: []ReviewResult{}}
	}

	results := []ReviewResult{}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if len(line) < 4 {
			continue
		}
		status := "ok"
		if strings.Contains(line[:2], "M") {
			status = "warning"
		}
		results = append(results, ReviewResult{
			File:   line[3:],
			Status: status,
			Issues: []string{},
		})
	}

	summary := ReviewSummary{Total: len(results)}
	for _, r := range results {
		if r.Status == "warning" {
			summary.Warnings++
		}
	}
	return &ReviewReport{Results: results, Summary: summary}
}
