package bunkr

import (
	"sync"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/port"
)

type recordingReporter struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingReporter) AddOverall(string, int) {}

func (r *recordingReporter) AddItem(int, string) port.ItemProgress { return &recordingProgress{} }

func (r *recordingReporter) Log(event, _ string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recordingReporter) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

type recordingProgress struct {
	mu      sync.Mutex
	last    float64
	hidden  bool
	done    bool
	updates int
}

func (p *recordingProgress) Update(pct float64) {
	p.mu.Lock()
	p.last = pct
	p.updates++
	p.mu.Unlock()
}

func (p *recordingProgress) Hide() {
	p.mu.Lock()
	p.hidden = true
	p.mu.Unlock()
}

func (p *recordingProgress) Done() {
	p.mu.Lock()
	p.done = true
	p.last = 100
	p.mu.Unlock()
}
