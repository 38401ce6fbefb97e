package main

import (
	"encoding/json"
	"strings"
	"testing"

	"mercator-hq/procmetrics/pkg/telemetry/health"
)

func TestVersionCommand(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	Version, GitCommit = "1.2.3-test", "abc123"
	defer func() { Version, GitCommit = origVersion, origCommit }()

	stdout, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	for _, want := range []string{"procmetrics 1.2.3-test", "Git Commit: abc123", "Go Version: go"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	stdout, _, err := execute(t, "version", "--format", "json")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}

	var info health.VersionInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if info.Version != Version || info.GoVersion == "" {
		t.Errorf("info = %+v", info)
	}
}

func TestCompletionCommand(t *testing.T) {
	stdout, _, err := execute(t, "completion", "bash")
	if err != nil {
		t.Fatalf("completion error = %v", err)
	}
	if !strings.Contains(stdout, "procmetrics") {
		t.Error("bash completion does not mention the command")
	}

	if _, _, err := execute(t, "completion", "tcsh"); err == nil {
		t.Error("unsupported shell accepted")
	}
}
