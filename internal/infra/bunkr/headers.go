package bunkr

import (
	"net/http"
	"strings"
)

const (
	userAgent      = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/117.0"
	downloadOrigin = "https://get.bunkrr.su/"
)

// DefaultStatusPage lists the operational state of every storage host.
const DefaultStatusPage = "https://status.bunkr.ru/"

func setPageHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
}

func setDownloadHeaders(req *http.Request) {
	setPageHeaders(req)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Referer", downloadOrigin)
}

// FFmpegHeaders renders the download headers in the form ffmpeg expects
// for its -headers option, so frame grabs pass the same hotlink checks as
// plain downloads.
func FFmpegHeaders() []string {
	var b strings.Builder
	b.WriteString("User-Agent: " + userAgent + "\r\n")
	b.WriteString("Referer: " + downloadOrigin + "\r\n")
	return []string{b.String()}
}
