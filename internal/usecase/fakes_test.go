package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/entity"
	"github.com/fiapx/fiapx-album-harvester/internal/domain/port"
	"github.com/fiapx/fiapx-album-harvester/internal/frames"
)

type fakeResolver struct {
	album *entity.Album
	items map[string][2]string
	fail  map[string]error
}

func (f *fakeResolver) ResolveAlbum(context.Context, string) (*entity.Album, error) {
	if f.album == nil {
		return nil, errors.New("album page unavailable")
	}
	return f.album, nil
}

func (f *fakeResolver) ResolveItem(_ context.Context, page string) (string, string, error) {
	if err, ok := f.fail[page]; ok {
		return "", "", err
	}
	item, ok := f.items[page]
	if !ok {
		return "", "", fmt.Errorf("unknown page %s", page)
	}
	return item[0], item[1], nil
}

type downloadCall struct {
	task    entity.DownloadTask
	retries int
}

// fakeDownloader fails the first pass for names in failFirst and the retry
// pass for names in failRetry.
type fakeDownloader struct {
	mu        sync.Mutex
	calls     []downloadCall
	failFirst map[string]bool
	failRetry map[string]bool
	delay     time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeDownloader) Download(ctx context.Context, task entity.DownloadTask, progress port.ItemProgress, retries int) *entity.FailureRecord {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, downloadCall{task: task, retries: retries})
	f.mu.Unlock()

	fail := f.failFirst[task.Filename]
	if retries == 1 {
		fail = f.failRetry[task.Filename]
	}
	if fail {
		if retries == 1 {
			progress.Hide()
		}
		return entity.FailureFor(task)
	}
	progress.Done()
	return nil
}

func (f *fakeDownloader) snapshot() []downloadCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]downloadCall(nil), f.calls...)
}

type fakeExtractor struct {
	mu       sync.Mutex
	readyErr error
	fail     map[string]bool
	requests []frames.ExtractionRequest
}

func (f *fakeExtractor) Ready() error { return f.readyErr }

func (f *fakeExtractor) Extract(_ context.Context, req frames.ExtractionRequest) (*frames.ExtractionResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.fail[req.Filename] {
		return nil, errors.New("ffmpeg exited with status 1")
	}
	return &frames.ExtractionResult{
		FramePaths: []string{req.OutputDir + "/f1.jpg", req.OutputDir + "/f2.jpg"},
		MaxFrames:  5,
		Candidates: 20,
		Skipped:    map[frames.SkipReason]int{frames.SkipCapture: 1},
	}, nil
}

type nopReporter struct {
	mu      sync.Mutex
	overall int
	items   []*fakeProgress
	events  []string
}

func (r *nopReporter) AddOverall(_ string, total int) {
	r.mu.Lock()
	r.overall = total
	r.mu.Unlock()
}

func (r *nopReporter) AddItem(int, string) port.ItemProgress {
	p := &fakeProgress{}
	r.mu.Lock()
	r.items = append(r.items, p)
	r.mu.Unlock()
	return p
}

func (r *nopReporter) Log(event, _ string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

type fakeProgress struct {
	hidden atomic.Bool
	done   atomic.Bool
}

func (p *fakeProgress) Update(float64) {}
func (p *fakeProgress) Hide()          { p.hidden.Store(true) }
func (p *fakeProgress) Done()          { p.done.Store(true) }
