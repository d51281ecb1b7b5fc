package internal

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxImageBytes caps how much image data is read for forwarding. Oversized
// images are omitted from the forward payload, never treated as fatal.
const MaxImageBytes = 25 * 1024 * 1024

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
	".gif":  true,
	".tiff": true,
	".tif":  true,
}

// CleanPath trims whitespace and surrounding quotes from a user-supplied
// path or URL.
func CleanPath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.Trim(p, "'")
	p = strings.Trim(p, "\"")
	return p
}

func isURL(p string) bool {
	lower := strings.ToLower(p)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// ExtOf returns the lowercase extension of a local path or URL.
func ExtOf(p string) string {
	p = CleanPath(p)
	if isURL(p) {
		parsed, err := url.Parse(p)
		if err != nil {
			return ""
		}
		return strings.ToLower(filepath.Ext(parsed.Path))
	}
	return strings.ToLower(filepath.Ext(p))
}

// IsImageRef reports whether text looks like an image path or image URL,
// judged by its extension.
func IsImageRef(text string) bool {
	if text == "" {
		return false
	}
	return imageExtensions[ExtOf(text)]
}

// ImageBasename returns the file base without extension, "image" when the
// path yields nothing usable.
func ImageBasename(p string) string {
	p = CleanPath(p)
	if isURL(p) {
		if parsed, err := url.Parse(p); err == nil {
			p = parsed.Path
		}
	}
	base := filepath.Base(p)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		return "image"
	}
	return base
}

// ReadImageBytes reads image bytes from a local path or URL, capped at
// MaxImageBytes. On any failure (missing file, unreachable URL, oversized
// data) it returns nil with the fallback name so callers can simply skip
// the attachment.
func ReadImageBytes(pathOrURL string) (data []byte, basename, ext string) {
	p := CleanPath(pathOrURL)
	basename = ImageBasename(p)
	ext = ExtOf(p)
	if ext == "" {
		ext = ".jpg"
	}

	var r io.ReadCloser
	if isURL(p) {
		client := &http.Client{Timeout: 6 * time.Second}
		resp, err := client.Get(p)
		if err != nil {
			return nil, basename, ext
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, basename, ext
		}
		r = resp.Body
	} else {
		f, err := os.Open(p)
		if err != nil {
			return nil, basename, ext
		}
		r = f
	}
	defer r.Close()

	buf, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil || len(buf) > MaxImageBytes {
		return nil, basename, ext
	}
	return buf, basename, ext
}

// SafeBasename derives a filesystem-safe base name from an image path,
// falling back to a timestamped name when the path yields nothing.
func SafeBasename(imagePath string, now time.Time) string {
	base := ImageBasename(imagePath)
	if base == "image" && CleanPath(imagePath) == "" {
		return fmt.Sprintf("image_%d", now.Unix())
	}
	return base
}
