package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"ALPACA_API_KEY", "ALPACA_API_SECRET", "FINNHUB_API_KEY", "VALKEY_HOST", "VALKEY_PORT", "VALKEY_PASSWORD", "PORT"} {
		if _, set := os.LookupEnv(k); !set {
			t.Setenv(k, "")
		}
	}
	cmd := NewRootCmd(zerolog.Nop())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--config", dir))
	err := cmd.Execute()
	return out.String(), err
}

func memoryConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := "[cache]\nbackend = \"memory\"\n\n[logging]\nlevel = \"error\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestVersion(t *testing.T) {
	out, err := run(t, t.TempDir(), "version", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if v["version"] != Version {
		t.Fatalf("version = %q", v["version"])
	}
}

func TestConfigPathAndShow(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "config", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != filepath.Join(dir, "config.toml") {
		t.Fatalf("path = %q", out)
	}

	t.Setenv("ALPACA_API_KEY", "AKTESTKEY1234567")
	out, err = run(t, dir, "config", "show", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "AKTESTKEY1234567") {
		t.Fatal("secret leaked into config show")
	}
	if !strings.Contains(out, "AKTE********4567") {
		t.Fatalf("key not masked: %s", out)
	}
}

func TestCacheInvalidate(t *testing.T) {
	dir := memoryConfigDir(t)

	out, err := run(t, dir, "cache", "invalidate", "quote", "aapl", "--json")
	if err != nil {
		t.Fatalf("invalidate: %v (%s)", err, out)
	}
	if !strings.Contains(out, `"invalidated": "stock:quote:AAPL"`) {
		t.Fatalf("out = %s", out)
	}

	out, err = run(t, dir, "cache", "invalidate", "bars", "AAPL", "--resolution", "1Day", "--limit", "100", "--json")
	if err != nil || !strings.Contains(out, "stock:bars:AAPL:1Day:100") {
		t.Fatalf("bars: %v (%s)", err, out)
	}

	_, err = run(t, dir, "cache", "invalidate", "bars", "AAPL")
	if err == nil || !Reported(err) {
		t.Fatalf("bars without resolution: %v", err)
	}
	_, err = run(t, dir, "cache", "invalidate", "portfolio")
	if err == nil {
		t.Fatal("unknown entity accepted")
	}
}

func TestCacheFlushRequiresConfirmation(t *testing.T) {
	dir := memoryConfigDir(t)

	if _, err := run(t, dir, "cache", "flush"); err == nil {
		t.Fatal("flush without --yes")
	}
	out, err := run(t, dir, "cache", "flush", "--yes", "--json")
	if err != nil || !strings.Contains(out, `"flushed": true`) {
		t.Fatalf("flush: %v (%s)", err, out)
	}

	out, err = run(t, dir, "cache", "status", "--json")
	if err != nil || !strings.Contains(out, `"state": "CONNECTED"`) {
		t.Fatalf("status: %v (%s)", err, out)
	}
}

func TestHistoryRejectsBadDate(t *testing.T) {
	dir := memoryConfigDir(t)
	_, err := run(t, dir, "history", "AAPL", "--start", "last week")
	if err == nil || !strings.Contains(err.Error(), "--start") {
		t.Fatalf("err = %v", err)
	}
}

func TestTable_AlignsColouredCells(t *testing.T) {
	var buf bytes.Buffer
	o := newOutput(&buf, false, true)
	table := NewTable(o, "SYM", "MOVE")
	table.AddRow("AAPL", o.FormatChange(1.5, 0.75))
	table.AddRow("TSLA", o.FormatChange(-2, -1.1))
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %q", lines)
	}
	if visibleLen(lines[0]) != visibleLen(lines[1]) {
		t.Fatalf("header %d wide, rule %d wide", visibleLen(lines[0]), visibleLen(lines[1]))
	}
	if !strings.Contains(lines[2], "\x1b[") {
		t.Fatal("row not coloured")
	}
}

func TestVisibleLen(t *testing.T) {
	if n := visibleLen("\x1b[32m+1.50\x1b[0m"); n != 5 {
		t.Fatalf("visibleLen = %d", n)
	}
}
