package main

import (
	"testing"
	"time"

	"github.com/alecthomas/kong"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kongVars())
	if err != nil {
		t.Fatal(err)
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		t.Fatal(err)
	}
	return &cli, ctx
}

func TestViewCmd_Basic(t *testing.T) {
	cli, ctx := parse(t, "view", "trace.json")

	if ctx.Command() != "view <trace>" {
		t.Errorf("unexpected command %q", ctx.Command())
	}
	if cli.View.Trace != "trace.json" {
		t.Errorf("expected trace 'trace.json', got %q", cli.View.Trace)
	}
	if cli.View.Follow || cli.View.Play || cli.View.Mode != "" {
		t.Errorf("unexpected defaults %+v", cli.View)
	}
}

func TestViewCmd_Flags(t *testing.T) {
	cli, _ := parse(t, "view", "-f", "--mode", "line", "--interval", "250ms", "--line", "4", "--play", "trace.jsonl")

	if !cli.View.Follow {
		t.Error("expected follow")
	}
	if cli.View.Mode != "line" {
		t.Errorf("expected line mode, got %q", cli.View.Mode)
	}
	if cli.View.Interval != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %s", cli.View.Interval)
	}
	if cli.View.Line != 4 || !cli.View.Play {
		t.Errorf("unexpected flags %+v", cli.View)
	}
}

func TestShowCmd(t *testing.T) {
	cli, _ := parse(t, "show", "-l", "3", "-s", "2", "trace.json")

	if cli.Show.Line != 3 || cli.Show.Step != 2 {
		t.Errorf("expected line 3 step 2, got %+v", cli.Show)
	}

	cli, _ = parse(t, "show", "--all", "--mode", "line", "trace.json")
	if !cli.Show.All || cli.Show.Mode != "line" {
		t.Errorf("expected timeline in line mode, got %+v", cli.Show)
	}
}

func TestCheckCmd_RepeatableLessons(t *testing.T) {
	cli, _ := parse(t, "check", "--lesson", "a.yaml", "--lesson", "lessons/", "trace.json")

	if len(cli.Check.Lesson) != 2 || cli.Check.Lesson[1] != "lessons/" {
		t.Errorf("expected two lesson paths, got %v", cli.Check.Lesson)
	}
}

func TestCheckCmd_LessonRequired(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kongVars())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := parser.Parse([]string{"check", "trace.json"}); err == nil {
		t.Error("expected error without --lesson")
	}
}

func TestGlobalConfig(t *testing.T) {
	cli, _ := parse(t, "--config", "custom.toml", "stats", "trace.json")

	if cli.Config != "custom.toml" {
		t.Errorf("expected config 'custom.toml', got %q", cli.Config)
	}
	if cli.Stats.Trace != "trace.json" {
		t.Errorf("expected trace 'trace.json', got %q", cli.Stats.Trace)
	}
}

func TestInitCmd(t *testing.T) {
	cli, _ := parse(t, "init")
	if cli.Init.Path != "tracereplay.toml" || cli.Init.Force {
		t.Errorf("unexpected defaults %+v", cli.Init)
	}

	cli, _ = parse(t, "init", "--force", "conf/replay.toml")
	if cli.Init.Path != "conf/replay.toml" || !cli.Init.Force {
		t.Errorf("unexpected flags %+v", cli.Init)
	}
}
