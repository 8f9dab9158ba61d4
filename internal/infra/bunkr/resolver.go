package bunkr

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/entity"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	itemAnchorClass   = "after:absolute after:z-10 after:inset-0"
	albumNameClass    = "text-subs font-semibold flex text-base sm:text-lg"
	mainImageClass    = "max-h-full w-auto object-cover relative z-20"
	firstButtonClass  = "btn btn-main btn-lg rounded-full px-6 font-semibold flex-1 ic-download-01 ic-before before:text-lg"
	secondButtonClass = "btn btn-main btn-lg rounded-full px-6 font-semibold ic-download-01 ic-before before:text-lg"

	defaultPageRetries = 5
)

var (
	ErrNoDownloadLink = errors.New("no download link on item page")
	ErrPageBlocked    = errors.New("page request rejected")
)

// Resolver reads album and item pages and turns them into direct links.
type Resolver struct {
	client  *http.Client
	logger  *zap.Logger
	retries int
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewResolver(client *http.Client, logger *zap.Logger) *Resolver {
	return &Resolver{client: client, logger: logger, retries: defaultPageRetries, sleep: sleepCtx}
}

func (r *Resolver) ResolveAlbum(ctx context.Context, albumURL string) (*entity.Album, error) {
	base, err := url.Parse(albumURL)
	if err != nil {
		return nil, fmt.Errorf("parse album url: %w", err)
	}
	doc, err := r.fetch(ctx, albumURL)
	if err != nil {
		return nil, err
	}

	album := &entity.Album{URL: albumURL, Name: albumName(doc)}
	if !IsAlbumURL(albumURL) {
		album.ItemPages = []string{albumURL}
		return album, nil
	}

	album.ID = lastSegment(base.Path)
	for _, a := range findAll(doc, tagWithClassAttr("a", itemAnchorClass, "href")) {
		href, _ := attr(a, "href")
		ref, err := url.Parse(href)
		if err != nil {
			r.logger.Debug("skipping malformed item link", zap.String("href", href))
			continue
		}
		album.ItemPages = append(album.ItemPages, base.ResolveReference(ref).String())
	}
	if len(album.ItemPages) == 0 {
		r.logger.Warn("no item pages found", zap.String("album_url", albumURL))
	}
	return album, nil
}

func (r *Resolver) ResolveItem(ctx context.Context, itemPage string) (string, string, error) {
	page := ItemPageURL(itemPage)
	doc, err := r.fetch(ctx, page)
	if err != nil {
		return "", "", err
	}

	var link string
	if src := mediaLink(doc); src != "" {
		link, err = resolveRef(page, src)
	} else {
		link, err = r.nonMediaLink(ctx, doc, page)
	}
	if err != nil {
		return "", "", err
	}

	name := FilenameFromLink(link)
	if name == "" {
		return "", "", fmt.Errorf("%w: cannot derive filename from %q", ErrNoDownloadLink, link)
	}
	return link, name, nil
}

// mediaLink prefers the video <source>, then the main picture.
func mediaLink(doc *html.Node) string {
	n := findFirst(doc, tagWithAttr("source", "src"))
	if n == nil {
		n = findFirst(doc, tagWithClassAttr("img", mainImageClass, "src"))
	}
	if n == nil {
		return ""
	}
	src, _ := attr(n, "src")
	return src
}

// nonMediaLink follows the two download buttons used for archives and
// other files without an inline preview.
func (r *Resolver) nonMediaLink(ctx context.Context, doc *html.Node, page string) (string, error) {
	first := findFirst(doc, tagWithClassAttr("a", firstButtonClass, "href"))
	if first == nil {
		return "", fmt.Errorf("%w: %s", ErrNoDownloadLink, page)
	}
	href, _ := attr(first, "href")
	next, err := resolveRef(page, href)
	if err != nil {
		return "", err
	}

	doc, err = r.fetch(ctx, next)
	if err != nil {
		return "", err
	}
	second := findFirst(doc, tagWithClassAttr("a", secondButtonClass, "href"))
	if second == nil {
		return "", fmt.Errorf("%w: %s", ErrNoDownloadLink, next)
	}
	href, _ = attr(second, "href")
	return resolveRef(next, href)
}

func (r *Resolver) fetch(ctx context.Context, pageURL string) (*html.Node, error) {
	var lastErr error
	for attempt := 0; attempt < r.retries; attempt++ {
		doc, retry, err := r.fetchOnce(ctx, pageURL)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !retry || attempt == r.retries-1 {
			break
		}
		delay := time.Duration(1<<(attempt+1))*time.Second + time.Duration(rand.Float64()*float64(time.Second))
		r.logger.Debug("page fetch failed, retrying",
			zap.String("url", pageURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// fetchOnce reports whether a failed request is worth repeating. Only
// transport errors are; an HTTP error status is final.
func (r *Resolver) fetchOnce(ctx context.Context, pageURL string) (*html.Node, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, false, err
	}
	setPageHeaders(req)

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return nil, false, fmt.Errorf("%w: ddos guard blocked %s", ErrPageBlocked, pageURL)
	case http.StatusBadGateway:
		return nil, false, fmt.Errorf("%w: bad gateway for %s, probably offline", ErrPageBlocked, pageURL)
	default:
		return nil, false, fmt.Errorf("%w: status %d for %s", ErrPageBlocked, resp.StatusCode, pageURL)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, false, nil
}

func albumName(doc *html.Node) string {
	box := findFirst(doc, func(n *html.Node) bool { return n.Data == "div" && classIs(n, albumNameClass) })
	if box == nil {
		return ""
	}
	h1 := findFirst(box, func(n *html.Node) bool { return n.Data == "h1" })
	if h1 == nil {
		return ""
	}
	return text(h1)
}

// IsAlbumURL reports whether u points to an album ("/a/<id>") rather than a
// single file page.
func IsAlbumURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	segs := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	return len(segs) >= 2 && segs[len(segs)-2] == "a"
}

// ItemPageURL rewrites "/d/" download pages to their "/v/" viewer page.
func ItemPageURL(itemPage string) string {
	parsed, err := url.Parse(itemPage)
	if err != nil {
		return itemPage
	}
	segs := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segs) >= 2 && segs[len(segs)-2] == "d" {
		return strings.Replace(itemPage, "/d/", "/v/", 1)
	}
	return itemPage
}

// FilenameFromLink is the unescaped last path segment of a download link.
func FilenameFromLink(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return lastSegment(parsed.Path)
}

func lastSegment(p string) string {
	base := path.Base(strings.TrimRight(p, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return base
}

func resolveRef(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", href, err)
	}
	return b.ResolveReference(ref).String(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
