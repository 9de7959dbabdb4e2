package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// stageLabels are the progress bar captions for engine stages.
var stageLabels = map[string]string{
	"apply": "Applying rules...",
	"flag":  "Flagging transactions...",
}

// Progress renders engine progress callbacks as a terminal progress bar.
// A new bar is started whenever the stage or total changes.
type Progress struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
	stage  string
	total  int
	mu     sync.Mutex
}

// NewProgress creates a progress reporter writing to writer.
func NewProgress(writer io.Writer) *Progress {
	return &Progress{writer: writer}
}

// Report matches engine.ProgressFunc.
func (p *Progress) Report(stage string, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil || stage != p.stage || total != p.total {
		p.start(stage, total)
	}
	if err := p.bar.Set(done); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Finish completes the current bar, if any.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		return
	}
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
	p.bar = nil
}

func (p *Progress) start(stage string, total int) {
	label, ok := stageLabels[stage]
	if !ok {
		label = stage
	}

	p.stage = stage
	p.total = total
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan][bold]%s[reset]", label)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}
