package gate

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideVerdicts(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Verdict
	}{
		{"yes short", "y\n", Approve},
		{"yes word", "yes\n", Approve},
		{"yes uppercase", "Y\n", Approve},
		{"no", "n\n", Reject},
		{"skip short", "s\n", SkipAlert},
		{"skip word", "skip\n", SkipAlert},
		{"quit short", "q\n", QuitRun},
		{"quit word", "quit\n", QuitRun},
		{"empty line rejects", "\n", Reject},
		{"garbage rejects", "sure why not\n", Reject},
		{"closed stdin quits", "", QuitRun},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := New(strings.NewReader(tc.input), &bytes.Buffer{})
			got := g.Decide("hbc21", "df -h", "check usage")
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecidePromptShowsProposal(t *testing.T) {
	var out bytes.Buffer
	g := New(strings.NewReader("y\n"), &out)
	g.Decide("hbc21", "du -sh /var/lib/mysql/*", "find the biggest tables")

	prompt := out.String()
	assert.Contains(t, prompt, "hbc21")
	assert.Contains(t, prompt, "du -sh /var/lib/mysql/*")
	assert.Contains(t, prompt, "find the biggest tables")
	assert.Contains(t, prompt, "(y/n/s=skip alert/q=quit)")
}

func TestConfirmContinue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"default yes", "\n", true},
		{"explicit yes", "y\n", true},
		{"no", "n\n", false},
		{"no word", "no\n", false},
		{"quit", "q\n", false},
		{"eof stops", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := New(strings.NewReader(tc.input), &bytes.Buffer{})
			assert.Equal(t, tc.want, g.ConfirmContinue())
		})
	}
}
