package main

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/TobiSchelling/burstkit/internal/bursts"
)

func TestParseDelimiter(t *testing.T) {
	cases := map[string]rune{
		"\t": '\t',
		`\t`: '\t',
		",":  ',',
		";":  ';',
		"|":  '|',
	}
	for in, want := range cases {
		got, err := parseDelimiter(in)
		if err != nil {
			t.Errorf("parseDelimiter(%q): unexpected error %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("parseDelimiter(%q) = %q, want %q", in, got, want)
		}
	}

	for _, bad := range []string{"", ",,", "ab"} {
		if _, err := parseDelimiter(bad); err == nil {
			t.Errorf("parseDelimiter(%q): expected error", bad)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"prep", "annotate", "series", "serve", "init", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("expected %s command to be registered", name)
		}
	}
}

func TestCheckLines(t *testing.T) {
	for _, n := range []int{0, -1} {
		if err := checkLines(n); err == nil {
			t.Errorf("checkLines(%d): expected error", n)
		}
	}
	if err := checkLines(1); err != nil {
		t.Errorf("checkLines(1): unexpected error %v", err)
	}
}

func TestPrepRejectsZeroLines(t *testing.T) {
	defer func() { prepLines = bursts.DefaultLines }()

	out := filepath.Join(t.TempDir(), "out.csv")
	rootCmd.SetArgs([]string{"prep", t.TempDir(), out, "-N", "0"})
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for -N 0")
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Error("expected no output file")
	}
}

func TestPrepPushesWithConfigFlag(t *testing.T) {
	defer func() { configPath = "" }()

	var pushed string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushed = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	dir := t.TempDir()
	ini := filepath.Join(dir, "custom.ini")
	os.WriteFile(ini, []byte("[db]\ndriver = sqlite\n[metrics]\npushgateway = "+gw.URL+"\njob = prep-test\n"), 0o644)
	windows := t.TempDir()
	os.WriteFile(filepath.Join(windows, "w1.txt"), []byte("garbage\n"), 0o644)

	rootCmd.SetArgs([]string{"--config", ini, "prep", windows, filepath.Join(dir, "out.csv")})
	rootCmd.SetOut(io.Discard)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pushed != "/metrics/job/prep-test" {
		t.Errorf("expected push to the configured gateway, got path %q", pushed)
	}
}
