package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/tracereplay/internal/config"
	"github.com/vinayprograms/tracereplay/internal/cursor"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestExpandLessons(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), "name: a\nexpect:\n  finished: true\n")
	writeFile(t, filepath.Join(dir, "b.md"), "---\nname: b\nexpect:\n  output_contains: [\"7\"]\n---\n")

	single := filepath.Join(t.TempDir(), "c.yml")
	writeFile(t, single, "name: c\nexpect:\n  locals:\n    total: 7\n")

	lessons, err := expandLessons([]string{dir, single})
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	var names []string
	for _, l := range lessons {
		names = append(names, l.Name)
	}
	if strings.Join(names, ",") != "a,b,c" {
		t.Errorf("unexpected lessons %v", names)
	}

	if _, err := expandLessons([]string{filepath.Join(dir, "missing.yaml")}); err == nil {
		t.Error("expected error for a missing lesson")
	}
}

func TestCheckLessons(t *testing.T) {
	logger := logging.New().WithComponent("test")
	tr, err := loadTrace(filepath.Join("..", "..", "testdata", "sum.json"), logger)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pass.yaml"), "name: pass\nexpect:\n  locals:\n    total: 7\n")
	writeFile(t, filepath.Join(dir, "fail.yaml"), "name: fail\nexpect:\n  locals:\n    total: 8\n")
	lessons, err := expandLessons([]string{dir})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	failed := checkLessons(&buf, tr, lessons)
	if failed != 1 {
		t.Errorf("expected 1 failed lesson, got %d", failed)
	}

	out := buf.String()
	for _, want := range []string{"FAIL", "PASS", "total == 8", "got 7"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLoadTrace_Error(t *testing.T) {
	logger := logging.New().WithComponent("test")
	if _, err := loadTrace(filepath.Join(t.TempDir(), "missing.json"), logger); err == nil {
		t.Error("expected error for a missing trace")
	}
}

func TestResolveMode(t *testing.T) {
	cfg := config.New()

	if mode, err := resolveMode("", cfg); err != nil || mode != cursor.ModeStep {
		t.Errorf("expected configured step mode, got %s, %v", mode, err)
	}

	cfg.Player.Mode = "line"
	if mode, _ := resolveMode("", cfg); mode != cursor.ModeLine {
		t.Errorf("expected configured line mode, got %s", mode)
	}
	if mode, _ := resolveMode("step", cfg); mode != cursor.ModeStep {
		t.Errorf("flag should override config, got %s", mode)
	}
	if _, err := resolveMode("fast", cfg); err == nil {
		t.Error("expected error for an unknown mode")
	}
}

func TestIsTerminal_File(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if isTerminal(f) {
		t.Error("a regular file is not a terminal")
	}
}
