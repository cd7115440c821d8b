package cmd

import "testing"

func TestResolveConfigPathPrefersExplicitFlag(t *testing.T) {
	cfgFile = "explicit.json5"
	defer func() { cfgFile = "" }()
	t.Setenv("NEROVA_CONFIG", "env.json5")

	if got := resolveConfigPath(); got != "explicit.json5" {
		t.Fatalf("got %q, want explicit.json5", got)
	}
}

func TestResolveConfigPathFallsBackToEnv(t *testing.T) {
	cfgFile = ""
	t.Setenv("NEROVA_CONFIG", "env.json5")

	if got := resolveConfigPath(); got != "env.json5" {
		t.Fatalf("got %q, want env.json5", got)
	}
}

func TestResolveConfigPathDefaultsWhenUnset(t *testing.T) {
	cfgFile = ""
	t.Setenv("NEROVA_CONFIG", "")

	if got := resolveConfigPath(); got != "nerovaagent.json5" {
		t.Fatalf("got %q, want nerovaagent.json5", got)
	}
}

func TestPadDisplayPadsASCIIToWidth(t *testing.T) {
	got := padDisplay("abc", 6)
	if got != "abc   " {
		t.Fatalf("got %q, want %q", got, "abc   ")
	}
}

func TestPadDisplayAccountsForWideRunes(t *testing.T) {
	// "你好" renders as 4 display columns even though it is 2 runes.
	got := padDisplay("你好", 6)
	if got != "你好  " {
		t.Fatalf("got %q, want %q", got, "你好  ")
	}
}

func TestTruncateDisplayLeavesShortStringsAlone(t *testing.T) {
	got := truncateDisplay("short", 40)
	if got != "short" {
		t.Fatalf("got %q, want short", got)
	}
}

func TestTruncateDisplayShortensLongStrings(t *testing.T) {
	long := "this prompt is definitely longer than the configured column width"
	got := truncateDisplay(long, 20)
	if len(got) >= len(long) {
		t.Fatalf("expected truncation, got %q", got)
	}
	runes := []rune(got)
	if runes[len(runes)-1] != '…' {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}
