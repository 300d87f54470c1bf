package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/John-Robertt/reqmatch/internal/app/run"
	"github.com/John-Robertt/reqmatch/internal/domain"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB300")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E53935")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8F98"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 把 run 层事件渲染为交互终端的逐行进度（写 stderr，不污染 stdout JSON）。
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w, startedAt: time.Now()}
}

func (p *progressUI) OnStart(runID, source string) {}

func (p *progressUI) OnPhaseDone(runID, name string, fields map[string]any, dur time.Duration) {
	if name != "match" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, mutedStyle.Render(fmt.Sprintf("  匹配: matched=%v leftover=%v (%s)", fields["matched"], fields["leftover"], formatShortDuration(dur))))
}

func (p *progressUI) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%d/%d] %s (%s)\n", idx, total, formatItemLine(res), formatShortDuration(dur))
}

func formatItemLine(res domain.ItemResult) string {
	name := displayName(res.Input)
	switch res.Status {
	case domain.ItemProcessed:
		rate := ""
		if res.Summary != nil {
			rate = fmt.Sprintf(" 匹配率 %.2f%%", res.Summary.MatchRate)
		}
		outs := make([]string, 0, 2)
		for _, o := range []string{res.Workbook, res.Report} {
			if o != "" {
				outs = append(outs, o)
			}
		}
		return okStyle.Render("✔ ") + name + rate + mutedStyle.Render(" → "+strings.Join(outs, ", "))
	case domain.ItemSkipped:
		return warnStyle.Render("- ") + name + mutedStyle.Render(" "+res.ErrorMsg)
	default:
		return failStyle.Render("✘ ") + name + " " + res.ErrorCode + ": " + res.ErrorMsg
	}
}

func displayName(input string) string {
	if strings.Contains(input, "://") {
		return input
	}
	return filepath.Base(input)
}

// emitBatch：stdout 是 TTY 时输出可读摘要；否则 stdout 必须且仅输出一个 BatchReport JSON（摘要走 stderr）。
func emitBatch(stdout, stderr io.Writer, br domain.BatchReport) {
	t := br.Totals
	line := fmt.Sprintf("完成：processed=%d skipped=%d failed=%d", t.Processed, t.Skipped, t.Failed)

	if !isTTY(stdout) {
		enc := json.NewEncoder(stdout)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(br)
		fmt.Fprintln(stderr, line)
		return
	}

	var b strings.Builder
	for _, it := range br.Items {
		if it.Status != domain.ItemProcessed || it.Summary == nil {
			continue
		}
		s := it.Summary
		fmt.Fprintf(&b, "%s\n  需求 %d · 已匹配 %d · 剩余 %d · 匹配率 %s\n  模块 %d · 未匹配模块 %d\n",
			displayName(it.Input),
			s.TotalRequirements, s.MatchedRequirements, s.UnmatchedRequirements, rateStyle(s.MatchRate).Render(fmt.Sprintf("%.2f%%", s.MatchRate)),
			s.ModuleCount, s.UnmatchedModules,
		)
	}
	b.WriteString(line)
	fmt.Fprintln(stdout, boxStyle.Render(b.String()))

	for _, it := range br.Items {
		if it.Status == domain.ItemFailed {
			fmt.Fprintf(stderr, "%s %s: %s\n", displayName(it.Input), it.ErrorCode, it.ErrorMsg)
		}
	}
}

func rateStyle(rate float64) lipgloss.Style {
	switch {
	case rate >= 90:
		return okStyle
	case rate >= 50:
		return warnStyle
	default:
		return failStyle
	}
}

func formatShortDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return "<1ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// pickProgressWriter：进度只在交互终端启用，默认走 stderr。
func pickProgressWriter(stderr io.Writer) (io.Writer, bool) {
	if isTTY(stderr) {
		return stderr, true
	}
	return nil, false
}
