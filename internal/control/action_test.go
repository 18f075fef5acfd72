package control

import "testing"

func TestParseActionRoundTrip(t *testing.T) {
	cases := []string{
		"kill web",
		"force-kill web",
		"deactivate web",
		"force-deactivate web",
		"start web",
		"force-start web",
		"restart web",
		"force-restart web",
		"system poweroff",
		"system restart",
		"system halt",
	}
	for _, line := range cases {
		a, err := ParseAction(line)
		if err != nil {
			t.Fatalf("ParseAction(%q): %v", line, err)
		}
		if got := a.String(); got != line {
			t.Errorf("round-trip mismatch: ParseAction(%q).String() = %q", line, got)
		}
	}
}

func TestParseActionDeactivateDoesNotAliasKill(t *testing.T) {
	a, err := ParseAction("deactivate web")
	if err != nil {
		t.Fatal(err)
	}
	if a.Verb != VerbDeactivate {
		t.Fatalf("deactivate parsed as verb %v, want VerbDeactivate (the original's FromStr aliased this to Kill)", a.Verb)
	}
}

func TestParseActionSyntaxError(t *testing.T) {
	if _, err := ParseAction("killonly"); err == nil {
		t.Fatal("expected ErrSyntax for a line with no payload separator")
	}
}

func TestParseActionUnknownVerb(t *testing.T) {
	if _, err := ParseAction("frobnicate web"); err == nil {
		t.Fatal("expected ErrUnknownAction for an unrecognized verb")
	}
}

func TestParseActionUnknownSystemCommand(t *testing.T) {
	if _, err := ParseAction("system nuke"); err == nil {
		t.Fatal("expected ErrUnknownAction for an unrecognized system command")
	}
}
