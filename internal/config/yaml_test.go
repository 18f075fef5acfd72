package config

import "testing"

func TestParseRespawn(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
		kind    RespawnKind
		max     int
	}{
		{"", false, RespawnNo, 0},
		{"no", false, RespawnNo, 0},
		{"retry", false, RespawnRetry, 0},
		{"retry(3)", false, RespawnRetry, 3},
		{"retry(0)", false, RespawnRetry, 0},
		{"retry(-1)", true, 0, 0},
		{"bogus", true, 0, 0},
	}
	for _, c := range cases {
		got, err := ParseRespawn(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseRespawn(%q): expected error, got %+v", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseRespawn(%q): unexpected error: %v", c.in, err)
		}
		if got.Kind != c.kind || got.Max != c.max {
			t.Errorf("ParseRespawn(%q) = %+v, want kind=%v max=%d", c.in, got, c.kind, c.max)
		}
	}
}

func TestParseCommandLineFlags(t *testing.T) {
	cases := []struct {
		in           string
		ignoreEnv    bool
		ignoreReturn bool
		args         []string
	}{
		{"echo hi", false, false, []string{"echo", "hi"}},
		{":echo hi", true, false, []string{"echo", "hi"}},
		{"-echo hi", false, true, []string{"echo", "hi"}},
		{":-echo hi", true, true, []string{"echo", "hi"}},
	}
	for _, c := range cases {
		cl, err := ParseCommandLine(c.in)
		if err != nil {
			t.Fatalf("ParseCommandLine(%q): %v", c.in, err)
		}
		if cl.IgnoreEnv != c.ignoreEnv || cl.IgnoreReturn != c.ignoreReturn {
			t.Errorf("ParseCommandLine(%q) flags = (%v,%v), want (%v,%v)", c.in, cl.IgnoreEnv, cl.IgnoreReturn, c.ignoreEnv, c.ignoreReturn)
		}
		if len(cl.Args) != len(c.args) {
			t.Fatalf("ParseCommandLine(%q) args = %v, want %v", c.in, cl.Args, c.args)
		}
		for i := range c.args {
			if cl.Args[i] != c.args[i] {
				t.Errorf("ParseCommandLine(%q) args[%d] = %q, want %q", c.in, i, cl.Args[i], c.args[i])
			}
		}
	}
}

func TestParseCommandLineQuoting(t *testing.T) {
	cl, err := ParseCommandLine(`echo "hello world"`)
	if err != nil {
		t.Fatal(err)
	}
	if len(cl.Args) != 2 || cl.Args[1] != "hello world" {
		t.Fatalf("got %#v, want [echo, \"hello world\"]", cl.Args)
	}
}

func TestNormalizeRejectsReservedName(t *testing.T) {
	_, err := normalize(TaskFile{Name: "group::x"}, nil)
	if err == nil {
		t.Fatal("expected error for reserved marker-prefixed name")
	}
}

func TestNormalizeUnknownBuiltin(t *testing.T) {
	_, err := normalize(TaskFile{Name: "t", Builtin: "nope"}, Builtins{})
	if err == nil {
		t.Fatal("expected error for unknown builtin")
	}
}

func TestNormalizeMarkerWhenCmdEmpty(t *testing.T) {
	cfg, err := normalize(TaskFile{Name: "t"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Payload.IsMarker() {
		t.Fatalf("expected marker payload, got %+v", cfg.Payload)
	}
}

func TestLoadFilesCollectsBeforeEdges(t *testing.T) {
	files := []TaskFile{
		{Name: "a"},
		{Name: "b", Before: []string{"a"}},
	}
	result := LoadFiles(files, nil)
	if len(result.Configs) != 2 {
		t.Fatalf("expected 2 configs, got %d (warnings: %v)", len(result.Configs), result.Warnings)
	}
	if got := result.Before["b"]; len(got) != 1 || got[0] != "a" {
		t.Fatalf("Before[b] = %v, want [a]", got)
	}
}
