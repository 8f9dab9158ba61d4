package bunkr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

const (
	statusOperational    = "Operational"
	statusNonOperational = "Non-operational"

	statusRowClass = "flex items-center gap-4 py-4 border-b border-soft last:border-b-0"
)

// HostStatus tracks which storage hosts are usable. It is seeded from the
// public status page and updated when a host stops answering. Safe for
// concurrent use.
type HostStatus struct {
	mu     sync.RWMutex
	byName map[string]string
}

func NewHostStatus(seed map[string]string) *HostStatus {
	s := &HostStatus{byName: make(map[string]string, len(seed))}
	for k, v := range seed {
		s.byName[k] = v
	}
	return s
}

// FetchHostStatus reads the status page. A page that cannot be fetched
// yields an empty, all-operational status and the error.
func FetchHostStatus(ctx context.Context, client *http.Client, statusURL string) (*HostStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return NewHostStatus(nil), err
	}
	setPageHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return NewHostStatus(nil), fmt.Errorf("fetch status page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return NewHostStatus(nil), fmt.Errorf("fetch status page: unexpected status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return NewHostStatus(nil), fmt.Errorf("parse status page: %w", err)
	}
	return NewHostStatus(parseStatusRows(doc)), nil
}

func parseStatusRows(doc *html.Node) map[string]string {
	rows := findAll(doc, func(n *html.Node) bool { return n.Data == "div" && classIs(n, statusRowClass) })
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		name := findFirst(row, func(n *html.Node) bool { return n.Data == "p" })
		state := findFirst(row, func(n *html.Node) bool { return n.Data == "span" })
		if name == nil || state == nil {
			continue
		}
		out[text(name)] = text(state)
	}
	return out
}

// hostName maps a download link to its status page entry, "Milkshake" for
// https://milkshake.bunkr.ru/....
func hostName(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	sub, _, _ := strings.Cut(u.Hostname(), ".")
	if sub == "" {
		return ""
	}
	return strings.ToUpper(sub[:1]) + strings.ToLower(sub[1:])
}

func (s *HostStatus) IsOffline(link string) bool {
	name := hostName(link)
	if name == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.byName[name]
	return ok && state != statusOperational
}

// MarkOffline flags the host of link and returns its name.
func (s *HostStatus) MarkOffline(link string) string {
	name := hostName(link)
	if name == "" {
		return ""
	}
	s.mu.Lock()
	s.byName[name] = statusNonOperational
	s.mu.Unlock()
	return name
}

// Offline lists the hosts currently considered unusable.
func (s *HostStatus) Offline() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string)
	for k, v := range s.byName {
		if v != statusOperational {
			out[k] = v
		}
	}
	return out
}
