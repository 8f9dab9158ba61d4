package bunkr

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var payload = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x42}, 40*1024)...)

type harness struct {
	dl       *Downloader
	reporter *recordingReporter
	status   *HostStatus
	delays   []time.Duration
}

func newHarness(client *http.Client) *harness {
	h := &harness{reporter: &recordingReporter{}, status: NewHostStatus(nil)}
	h.dl = NewDownloader(client, h.status, h.reporter, zap.NewNop())
	h.dl.sleep = func(_ context.Context, d time.Duration) error {
		h.delays = append(h.delays, d)
		return nil
	}
	h.dl.jitter = func() float64 { return 3 }
	return h
}

func task(t *testing.T, link, name string) entity.DownloadTask {
	return entity.DownloadTask{ItemIndex: 4, Filename: name, DownloadLink: link, Dir: t.TempDir()}
}

func serveBytes(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.Write(b)
}

func TestDownloadWritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://get.bunkrr.su/", r.Header.Get("Referer"))
		serveBytes(w, payload)
	}))
	defer srv.Close()

	h := newHarness(srv.Client())
	tk := task(t, srv.URL+"/photo.jpg", "photo.jpg")
	progress := &recordingProgress{}

	failure := h.dl.Download(context.Background(), tk, progress, DefaultRetries)
	assert.Nil(t, failure)

	got, err := os.ReadFile(filepath.Join(tk.Dir, "photo.jpg"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, []string{"photo.jpg"}, dirNames(t, tk.Dir))

	assert.True(t, progress.done)
	assert.Greater(t, progress.updates, 1)
}

func TestDownloadBacksOffOnTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		serveBytes(w, payload)
	}))
	defer srv.Close()

	h := newHarness(srv.Client())
	failure := h.dl.Download(context.Background(), task(t, srv.URL+"/a.jpg", "a.jpg"), &recordingProgress{}, DefaultRetries)

	assert.Nil(t, failure)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{7 * time.Second, 19 * time.Second}, h.delays)
	assert.True(t, h.reporter.has("Too many requests"))
}

func TestDownloadFirstPassFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	h := newHarness(srv.Client())
	tk := task(t, srv.URL+"/gone.mp4", "gone.mp4")
	progress := &recordingProgress{}

	failure := h.dl.Download(context.Background(), tk, progress, DefaultRetries)
	require.NotNil(t, failure)
	assert.Equal(t, entity.FailureRecord{ItemIndex: 4, Filename: "gone.mp4", DownloadLink: tk.DownloadLink}, *failure)
	assert.False(t, progress.hidden)
	assert.True(t, h.reporter.has("Exceeded retry attempts"))
}

func TestDownloadFinalAttemptFailureIsHidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	h := newHarness(srv.Client())
	progress := &recordingProgress{}

	failure := h.dl.Download(context.Background(), task(t, srv.URL+"/x.mp4", "x.mp4"), progress, 1)
	assert.NotNil(t, failure)
	assert.True(t, progress.hidden)
	assert.Empty(t, h.delays)
	assert.True(t, h.reporter.has("Download failed"))
}

func TestDownloadNoResponseMarksHostOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	link := srv.URL + "/v.mp4"
	client := srv.Client()
	srv.Close()

	h := newHarness(client)
	failure := h.dl.Download(context.Background(), task(t, link, "v.mp4"), &recordingProgress{}, DefaultRetries)

	require.NotNil(t, failure)
	assert.True(t, h.status.IsOffline(link))
	assert.True(t, h.reporter.has("No response"))

	// the retry pass gives up immediately on an offline host
	progress := &recordingProgress{}
	assert.NotNil(t, h.dl.Download(context.Background(), task(t, link, "v.mp4"), progress, 1))
	assert.True(t, progress.hidden)
	assert.True(t, h.reporter.has("Non-operational subdomain"))
}

func TestDownloadSkipsExistingFile(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		serveBytes(w, payload)
	}))
	defer srv.Close()
	h := newHarness(srv.Client())

	existing := task(t, srv.URL+"/have.jpg", "have.jpg")
	require.NoError(t, os.WriteFile(filepath.Join(existing.Dir, "have.jpg"), []byte("x"), 0644))
	progress := &recordingProgress{}
	assert.Nil(t, h.dl.Download(context.Background(), existing, progress, DefaultRetries))
	assert.True(t, progress.hidden)

	assert.Zero(t, calls.Load())
	assert.True(t, h.reporter.has("Skipped download"))
}

func TestDownloadRejectsHTMLPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveBytes(w, []byte("<!DOCTYPE html><html><body>maintenance</body></html>"))
	}))
	defer srv.Close()

	h := newHarness(srv.Client())
	tk := task(t, srv.URL+"/v.mp4", "v.mp4")
	failure := h.dl.Download(context.Background(), tk, &recordingProgress{}, DefaultRetries)

	require.NotNil(t, failure)
	entries, err := os.ReadDir(tk.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadSameStemFilesDoNotShareTempFile(t *testing.T) {
	video := append([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p'}, bytes.Repeat([]byte{0x11}, 64*1024)...)
	bodies := map[string][]byte{"/clip.mp4": video, "/clip.jpg": payload}

	// both responses stay half written until the two downloads are in flight
	var inFlight sync.WaitGroup
	inFlight.Add(len(bodies))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := bodies[r.URL.Path]
		w.Header().Set("Content-Length", strconv.Itoa(len(b)))
		half := len(b) / 2
		w.Write(b[:half])
		w.(http.Flusher).Flush()
		inFlight.Done()
		inFlight.Wait()
		w.Write(b[half:])
	}))
	defer srv.Close()

	h := newHarness(srv.Client())
	dir := t.TempDir()
	var wg sync.WaitGroup
	failures := make(map[string]*entity.FailureRecord)
	var mu sync.Mutex
	for path := range bodies {
		name := path[1:]
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk := entity.DownloadTask{Filename: name, DownloadLink: srv.URL + path, Dir: dir}
			f := h.dl.Download(context.Background(), tk, &recordingProgress{}, DefaultRetries)
			mu.Lock()
			failures[name] = f
			mu.Unlock()
		}()
	}
	wg.Wait()

	for path, want := range bodies {
		name := path[1:]
		require.Nil(t, failures[name], name)
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	assert.ElementsMatch(t, []string{"clip.jpg", "clip.mp4"}, dirNames(t, dir))
}

func TestDownloadTruncatedBodyLeavesNoTempFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100000")
		w.Write(payload[:20000])
	}))
	defer srv.Close()

	h := newHarness(srv.Client())
	tk := task(t, srv.URL+"/x.jpg", "x.jpg")
	failure := h.dl.Download(context.Background(), tk, &recordingProgress{}, 1)

	require.NotNil(t, failure)
	assert.Empty(t, dirNames(t, tk.Dir))
}

func TestSaveWithProgressShortStreamLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	err := saveWithProgress(bytes.NewReader(payload[:1000]), int64(len(payload)), filepath.Join(dir, "x.jpg"), &recordingProgress{})

	assert.ErrorIs(t, err, errIncomplete)
	assert.Empty(t, dirNames(t, dir))
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestChunkSize(t *testing.T) {
	assert.Equal(t, 16*kb, chunkSize(-1))
	assert.Equal(t, 16*kb, chunkSize(512*kb))
	assert.Equal(t, 64*kb, chunkSize(5*mb))
	assert.Equal(t, 512*kb, chunkSize(200*mb))
	assert.Equal(t, 1*mb, chunkSize(2048*mb))
}
