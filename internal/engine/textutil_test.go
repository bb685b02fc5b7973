package engine

import "testing"

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"spaces and tabs", "a  \t b\t\tc", "a b c"},
		{"carriage returns", "line1\r\nline2\r\n", "line1\nline2"},
		{"many newlines", "a\n\n\n\n\nb", "a\n\nb"},
		{"two newlines kept", "a\n\nb", "a\n\nb"},
		{"trim ends", "  \n\t hello \n\n ", "hello"},
		{"spaces around newlines", "a   \n\n\n   b", "a\n\nb"},
		{"nbsp", "a  b", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeWhitespace(tt.in); got != tt.want {
				t.Errorf("NormalizeWhitespace(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeWhitespaceIdempotent(t *testing.T) {
	inputs := []string{
		"  Title \r\n\r\n\r\n  body\ttext  \n \n \n end ",
		"a \n b \n\n\n\n c",
		"\t\t\n\n\n",
		"one\n \n \n \ntwo",
		"plain",
	}
	for _, in := range inputs {
		once := NormalizeWhitespace(in)
		twice := NormalizeWhitespace(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestCleanHTML(t *testing.T) {
	if got := CleanHTML(" <b>bold</b> text "); got != "bold text" {
		t.Errorf("CleanHTML() = %q, want %q", got, "bold text")
	}
}
