package logger

import "testing"

func TestStripAnsiCodes(t *testing.T) {
	cases := map[string]string{
		"plain text":                    "plain text",
		"\x1b[31mred\x1b[0m":            "red",
		"\x1b[1;32mbold green\x1b[0m!":  "bold green!",
		"":                              "",
		"no\x1bescape":                  "no\x1bescape",
	}

	for in, want := range cases {
		if got := stripAnsiCodes(in); got != want {
			t.Errorf("stripAnsiCodes(%q) = %q, want %q", in, got, want)
		}
	}
}
