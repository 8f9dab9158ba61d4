package bunkr

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchHostStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		row := `<div class="flex items-center gap-4 py-4 border-b border-soft last:border-b-0"><p>%s</p><span>%s</span></div>`
		fmt.Fprintf(w, "<html><body>"+row+row+"</body></html>", "Milkshake", "Operational", "Kebab", "Non-operational")
	}))
	defer srv.Close()

	status, err := FetchHostStatus(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)

	assert.False(t, status.IsOffline("https://milkshake.bunkr.ru/a.mkv"))
	assert.True(t, status.IsOffline("https://kebab.bunkr.ru/b.mp4"))
	assert.False(t, status.IsOffline("https://unknown.bunkr.ru/c.mp4"))
	assert.Equal(t, map[string]string{"Kebab": "Non-operational"}, status.Offline())
}

func TestFetchHostStatusFailureIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	status, err := FetchHostStatus(context.Background(), srv.Client(), srv.URL)
	assert.Error(t, err)
	require.NotNil(t, status)
	assert.Empty(t, status.Offline())
}

func TestMarkOfflineConcurrently(t *testing.T) {
	status := NewHostStatus(map[string]string{"Cdn": "Operational"})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status.MarkOffline("https://cdn.example.org/file.mp4")
			status.IsOffline("https://cdn.example.org/file.mp4")
		}()
	}
	wg.Wait()

	assert.True(t, status.IsOffline("https://CDN.example.org/x"))
	assert.Equal(t, "Cdn", status.MarkOffline("https://cdn.example.org/y"))
	assert.Empty(t, status.MarkOffline("not a url"))
}
