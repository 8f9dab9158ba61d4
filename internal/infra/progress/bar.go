package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/port"
	"github.com/schollz/progressbar/v3"
)

// BarReporter draws one terminal bar per album that advances as items
// finish. Log lines are printed above the bar.
type BarReporter struct {
	mu  sync.Mutex
	w   io.Writer
	bar *progressbar.ProgressBar
}

func NewBarReporter(w io.Writer) *BarReporter {
	return &BarReporter{w: w}
}

func (r *BarReporter) AddOverall(description string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		r.bar.Finish()
		fmt.Fprintln(r.w)
	}
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (r *BarReporter) AddItem(int, string) port.ItemProgress {
	return &barItem{r: r}
}

func (r *BarReporter) Log(event, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		r.bar.Clear()
	}
	fmt.Fprintf(r.w, "[%s] %s\n", event, message)
	if r.bar != nil {
		r.bar.RenderBlank()
	}
}

// Finish completes the current bar.
func (r *BarReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		r.bar.Finish()
		fmt.Fprintln(r.w)
		r.bar = nil
	}
}

func (r *BarReporter) advance() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		r.bar.Add(1)
	}
}

// barItem counts towards the album bar exactly once, whether it finished or
// was hidden.
type barItem struct {
	r    *BarReporter
	once sync.Once
}

func (i *barItem) Update(float64) {}
func (i *barItem) Hide()          { i.once.Do(i.r.advance) }
func (i *barItem) Done()          { i.once.Do(i.r.advance) }
