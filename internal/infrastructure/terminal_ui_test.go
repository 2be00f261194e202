package infrastructure

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/httpdl-go/internal/domain"
)

func TestTerminalUI_Confirm(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"yes", "y\n", true},
		{"long yes", "Yes\n", true},
		{"no", "n\n", false},
		{"empty", "\n", false},
		{"eof", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			ui := NewTerminalUI(strings.NewReader(tt.input), &out, false)

			answer := ui.Confirm(domain.Prompt{Kind: domain.PromptOverwrite, Message: "Overwrite?"})
			assert.Equal(t, tt.expected, answer)
			assert.Contains(t, out.String(), "Overwrite? [y/N]")
		})
	}
}

func TestTerminalUI_AssumeYes(t *testing.T) {
	var out bytes.Buffer
	ui := NewTerminalUI(strings.NewReader(""), &out, true)

	assert.True(t, ui.Confirm(domain.Prompt{Kind: domain.PromptRedirect, Message: "Redirect to http://example.com/b ?"}))
	assert.Contains(t, out.String(), "Redirect to http://example.com/b ? [y/N] y")
}

func TestTerminalUI_InterruptDeclinesPendingPrompt(t *testing.T) {
	in, input := io.Pipe()
	defer input.Close()
	ui := NewTerminalUI(in, io.Discard, false)

	answer := make(chan bool, 1)
	go func() {
		answer <- ui.Confirm(domain.Prompt{Kind: domain.PromptRedirect, Message: "Redirect to http://example.com/b ?"})
	}()

	require.Eventually(t, func() bool {
		ui.mu.Lock()
		defer ui.mu.Unlock()
		return ui.interrupt != nil
	}, time.Second, 10*time.Millisecond)

	updated := make(chan struct{})
	go func() {
		ui.SetTriggerEnabled(true)
		ui.ShowStatus("Download canceled.")
		close(updated)
	}()
	select {
	case <-updated:
	case <-time.After(time.Second):
		t.Fatal("output blocked by a pending prompt")
	}

	ui.Interrupt()
	select {
	case accepted := <-answer:
		assert.False(t, accepted)
	case <-time.After(time.Second):
		t.Fatal("prompt not interrupted")
	}

	ui.Interrupt()
}

func TestTerminalUI_NilInputDeclines(t *testing.T) {
	var out bytes.Buffer
	ui := NewTerminalUI(nil, &out, false)
	assert.False(t, ui.Confirm(domain.Prompt{Kind: domain.PromptOverwrite, Message: "Overwrite?"}))
}

func TestTerminalUI_StatusEndsProgressLine(t *testing.T) {
	var out bytes.Buffer
	ui := NewTerminalUI(strings.NewReader(""), &out, false)

	ui.SetProgress(512, 1024)
	ui.ShowStatus("Downloaded to /tmp/httpdl/a.bin.")
	ui.ShowError("Download failed: boom.")

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if assert.Len(t, lines, 3) {
		assert.Contains(t, lines[0], "50.0%")
		assert.Contains(t, lines[1], "Downloaded to /tmp/httpdl/a.bin.")
		assert.Contains(t, lines[2], "Download failed: boom.")
	}
}

func TestTerminalUI_Trigger(t *testing.T) {
	ui := NewTerminalUI(strings.NewReader(""), &bytes.Buffer{}, false)
	assert.True(t, ui.TriggerEnabled())

	ui.SetTriggerEnabled(false)
	assert.False(t, ui.TriggerEnabled())
}

func TestFormatProgress(t *testing.T) {
	half := FormatProgress(6656, 13312)
	assert.Contains(t, half, "50.0%")
	assert.Contains(t, half, "6.7 kB / 13 kB")

	full := FormatProgress(13312, 13312)
	assert.Contains(t, full, "100.0%")
	assert.Contains(t, full, strings.Repeat("━", progressWidth))

	unknown := FormatProgress(2048, -1)
	assert.Contains(t, unknown, "2.0 kB")
	assert.NotContains(t, unknown, "%")
}
