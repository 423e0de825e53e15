package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/temotskipa/autoredistrict/pkg/buildinfo"
)

func TestNew(t *testing.T) {
	app := New(io.Discard, LogInfo)
	if app == nil {
		t.Fatal("New() returned nil")
	}
	if app.Logger == nil {
		t.Fatal("New() should set a logger")
	}
}

func TestSetLogLevel(t *testing.T) {
	app := New(io.Discard, LogInfo)
	app.SetLogLevel(LogDebug)
	if got := app.Logger.GetLevel(); got != log.DebugLevel {
		t.Errorf("GetLevel() = %v, want %v", got, log.DebugLevel)
	}
}

func TestRootCommandSubcommands(t *testing.T) {
	app := New(io.Discard, LogInfo)
	root := app.RootCommand()

	want := []string{"plan", "apportion", "adjacency", "plans", "cache", "serve", "completion"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command missing subcommand %q", name)
		}
	}
}

func TestRootCommandVersion(t *testing.T) {
	app := New(io.Discard, LogInfo)
	root := app.RootCommand()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"--version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(buf.String(), buildinfo.Version) {
		t.Errorf("version output %q should contain %q", buf.String(), buildinfo.Version)
	}
}

func TestRootCommandInvalidLogLevel(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	app := New(io.Discard, LogInfo)
	root := app.RootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--log-level", "shouting", "cache", "path"})

	if err := root.Execute(); err == nil {
		t.Error("Execute() with invalid log level should return error")
	}
}

func TestRootCommandInvalidLogFormat(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	app := New(io.Discard, LogInfo)
	root := app.RootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--log-format", "xml", "cache", "path"})

	if err := root.Execute(); err == nil {
		t.Error("Execute() with invalid log format should return error")
	}
}

func TestRootCommandVerbose(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	app := New(io.Discard, LogInfo)
	root := app.RootCommand()
	root.SetOut(io.Discard)
	root.SetArgs([]string{"-v", "cache", "path"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := app.Logger.GetLevel(); got != log.DebugLevel {
		t.Errorf("GetLevel() after -v = %v, want %v", got, log.DebugLevel)
	}
}

func TestNewCacheNull(t *testing.T) {
	app := New(io.Discard, LogInfo)
	cch, err := app.newCache(context.Background(), true)
	if err != nil {
		t.Fatalf("newCache() error = %v", err)
	}
	if cch == nil {
		t.Fatal("newCache() returned nil cache")
	}
}

func TestNewCacheFile(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	app := New(io.Discard, LogInfo)
	cch, err := app.newCache(context.Background(), false)
	if err != nil {
		t.Fatalf("newCache() error = %v", err)
	}
	if cch == nil {
		t.Fatal("newCache() returned nil cache")
	}
}
