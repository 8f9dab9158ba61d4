package frames

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

const maxFolderNameLen = 50

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mkv": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".flv": {}, ".webm": {},
	".m4v": {}, ".3gp": {}, ".ogv": {}, ".ts": {}, ".mts": {}, ".m2ts": {},
}

// IsVideoFile reports whether filename carries a known video extension.
func IsVideoFile(filename string) bool {
	if filename == "" {
		return false
	}
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// SanitizeFolderName replaces characters that are illegal in folder names
// and caps the result at 50 characters.
func SanitizeFolderName(name string) string {
	out := []rune(strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, name))
	if len(out) > maxFolderNameLen {
		out = out[:maxFolderNameLen]
	}
	return string(out)
}

// FramesDirName is the per-video output directory for a source filename.
func FramesDirName(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return "video_" + SanitizeFolderName(stem) + "_frames"
}

// FrameFilename encodes the 1-based sequence number and the source
// timestamp in milliseconds.
func FrameFilename(prefix string, seq int, timestamp float64) string {
	ms := int64(math.RoundToEven(timestamp * 1000))
	return fmt.Sprintf("%s_%03d_t%dms.jpg", prefix, seq, ms)
}
