package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/treepull/pkg/pull"
)

// progressMsg carries a pull progress snapshot into the TUI.
type progressMsg pull.Progress

// pullDoneMsg ends the TUI when the pull returns.
type pullDoneMsg struct {
	result *pull.Result
	err    error
}

// pullModel is the bubbletea model rendering a single live status line for a
// running pull, in the style of the classic console status line.
type pullModel struct {
	remote string
	cancel context.CancelFunc

	latest  pull.Progress
	haveAny bool
	frame   int

	result *pull.Result
	err    error
}

func newPullModel(remote string, cancel context.CancelFunc) pullModel {
	return pullModel{remote: remote, cancel: cancel}
}

func (m pullModel) Init() tea.Cmd {
	return nil
}

func (m pullModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.latest = pull.Progress(msg)
		m.haveAny = true
		m.frame++
	case pullDoneMsg:
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			// Cancel the pull; the done message still arrives and quits.
			m.cancel()
		}
	}
	return m, nil
}

var pullSpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (m pullModel) View() string {
	if m.result != nil || m.err != nil {
		return ""
	}
	frame := pullSpinnerFrames[m.frame%len(pullSpinnerFrames)]
	line := styleIconSpinner.Render(frame) + " " + StyleHighlight.Render("pull "+m.remote)
	if !m.haveAny {
		return line + "\n"
	}
	return line + " " + StyleDim.Render(statusLine(m.latest)) + "\n"
}

// statusLine formats a progress snapshot as a compact one-liner.
func statusLine(p pull.Progress) string {
	var parts []string
	if !p.ScanIdle {
		parts = append(parts, fmt.Sprintf("scan: %d metadata", p.ScannedMeta))
	}
	if p.OutstandingWrites > 0 {
		parts = append(parts, fmt.Sprintf("writing: %d objects", p.OutstandingWrites))
	}
	if p.OutstandingFetches > 0 {
		parts = append(parts, fmt.Sprintf("fetch: %d/%d metadata %d/%d content",
			p.FetchedMeta, p.RequestedMeta, p.FetchedContent, p.RequestedContent))
		parts = append(parts, formatRate(p.BytesPerSec))
		parts = append(parts, p.FetcherState)
	}
	return strings.Join(parts, "; ")
}

func formatRate(bytesPerSec uint64) string {
	if bytesPerSec < 1024 {
		return fmt.Sprintf("%d B/s", bytesPerSec)
	}
	return fmt.Sprintf("%.1f KiB/s", float64(bytesPerSec)/1024)
}
