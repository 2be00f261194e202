package infrastructure

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/yourusername/httpdl-go/internal/domain"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("37"))            // dark green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))             // red
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))            // yellow
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))            // cyan
	debugStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))           // light grey
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")) // purple
)

var styleSymbols = map[string]string{
	"pass":    "✓",
	"fail":    "✗",
	"warning": "!",
	"info":    "ℹ",
	"arrow":   "↓",
	"bullet":  "•",
	"hline":   "━",
}

const (
	progressWidth    = 30
	progressInterval = 100 * time.Millisecond
)

// TerminalUI implements domain.UI on a terminal
type TerminalUI struct {
	in        io.Reader
	out       io.Writer
	assumeYes bool

	readOnce sync.Once
	lines    chan inputLine

	// promptMu serializes prompts; mu guards output and state and is never
	// held while waiting for input
	promptMu       sync.Mutex
	mu             sync.Mutex
	interrupt      chan struct{}
	progressLine   bool
	lastDraw       time.Time
	triggerEnabled bool
}

type inputLine struct {
	text string
	err  error
}

// NewTerminalUI creates a terminal UI. With assumeYes every prompt is accepted.
func NewTerminalUI(in io.Reader, out io.Writer, assumeYes bool) *TerminalUI {
	return &TerminalUI{
		in:             in,
		out:            out,
		assumeYes:      assumeYes,
		lines:          make(chan inputLine, 1),
		triggerEnabled: true,
	}
}

// Header prints a heading line
func (u *TerminalUI) Header(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.endProgressLine()
	fmt.Fprintln(u.out, headerStyle.Render(text))
}

// Confirm asks a yes/no question on the terminal. A prompt still waiting
// for an answer is declined by Interrupt.
func (u *TerminalUI) Confirm(prompt domain.Prompt) bool {
	u.promptMu.Lock()
	defer u.promptMu.Unlock()

	question := warningStyle.Render(fmt.Sprintf("%s %s", styleSymbols["warning"], prompt.Message))

	u.mu.Lock()
	u.endProgressLine()
	if u.assumeYes {
		fmt.Fprintf(u.out, "%s [y/N] y\n", question)
		u.mu.Unlock()
		return true
	}
	fmt.Fprintf(u.out, "%s [y/N] ", question)
	if u.in == nil {
		fmt.Fprintln(u.out)
		u.mu.Unlock()
		return false
	}
	interrupt := make(chan struct{})
	u.interrupt = interrupt
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		u.interrupt = nil
		u.mu.Unlock()
	}()

	u.readOnce.Do(func() { go u.readLines() })

	select {
	case line, ok := <-u.lines:
		if !ok || (line.err != nil && line.text == "") {
			u.newline()
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line.text)) {
		case "y", "yes":
			return true
		}
		return false
	case <-interrupt:
		u.newline()
		return false
	}
}

// Interrupt declines the prompt waiting for an answer, if any
func (u *TerminalUI) Interrupt() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.interrupt != nil {
		close(u.interrupt)
		u.interrupt = nil
	}
}

// readLines feeds input lines to Confirm until the reader fails
func (u *TerminalUI) readLines() {
	reader := bufio.NewReader(u.in)
	for {
		text, err := reader.ReadString('\n')
		u.lines <- inputLine{text: text, err: err}
		if err != nil {
			close(u.lines)
			return
		}
	}
}

func (u *TerminalUI) newline() {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintln(u.out)
}

// SetProgress redraws the progress line
func (u *TerminalUI) SetProgress(current, total int64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := time.Now()
	if u.progressLine && now.Sub(u.lastDraw) < progressInterval && current != total {
		return
	}
	u.lastDraw = now
	u.progressLine = true
	fmt.Fprintf(u.out, "\r\033[K%s", FormatProgress(current, total))
}

// ShowStatus prints an informational message
func (u *TerminalUI) ShowStatus(message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.endProgressLine()

	if strings.HasPrefix(message, "Downloaded to ") {
		fmt.Fprintln(u.out, successStyle.Render(styleSymbols["pass"]+" "+message))
		return
	}
	fmt.Fprintln(u.out, infoStyle.Render(styleSymbols["info"]+" "+message))
}

// ShowError prints an error message
func (u *TerminalUI) ShowError(message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.endProgressLine()
	fmt.Fprintln(u.out, errorStyle.Render(styleSymbols["fail"]+" "+message))
}

// SetTriggerEnabled records whether a new download may be started
func (u *TerminalUI) SetTriggerEnabled(enabled bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.triggerEnabled = enabled
}

// TriggerEnabled reports the last trigger state
func (u *TerminalUI) TriggerEnabled() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.triggerEnabled
}

func (u *TerminalUI) endProgressLine() {
	if u.progressLine {
		fmt.Fprintln(u.out)
		u.progressLine = false
	}
}

// FormatProgress renders a progress bar, or a byte counter when total is unknown
func FormatProgress(current, total int64) string {
	if current < 0 {
		current = 0
	}
	if total <= 0 {
		return debugStyle.Render(fmt.Sprintf("%s %s", styleSymbols["arrow"], humanize.Bytes(uint64(current))))
	}

	percent := float64(current) / float64(total)
	if percent > 1 {
		percent = 1
	}
	filled := int(percent * float64(progressWidth))

	bar := styleSymbols["bullet"]
	bar += strings.Repeat(styleSymbols["hline"], filled)
	bar += strings.Repeat(" ", progressWidth-filled)
	bar += styleSymbols["bullet"]

	return debugStyle.Render(fmt.Sprintf("%s %.1f%% %s %s / %s",
		bar, percent*100, styleSymbols["bullet"],
		humanize.Bytes(uint64(current)), humanize.Bytes(uint64(total))))
}
