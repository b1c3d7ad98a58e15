package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"

	"github.com/nao1215/appscout/internal/browser"
	"github.com/nao1215/appscout/internal/model"
)

// PostVisitHook runs after a page was extracted, while the page handle is
// still open. Errors are logged and do not fail the visit.
type PostVisitHook interface {
	AfterVisit(ctx context.Context, page browser.Page, record *model.PageRecord) error
}

// HookFunc adapts a function to PostVisitHook.
type HookFunc func(ctx context.Context, page browser.Page, record *model.PageRecord) error

// AfterVisit implements PostVisitHook.
func (f HookFunc) AfterVisit(ctx context.Context, page browser.Page, record *model.PageRecord) error {
	return f(ctx, page, record)
}

// DefaultScreenshotWidth is the width screenshots are downsized to.
const DefaultScreenshotWidth = 800

// ScreenshotHook saves a PNG thumbnail of every visited page.
type ScreenshotHook struct {
	dir      string
	maxWidth uint
}

// NewScreenshotHook creates a hook writing into dir. A zero maxWidth uses
// DefaultScreenshotWidth.
func NewScreenshotHook(dir string, maxWidth uint) *ScreenshotHook {
	if maxWidth == 0 {
		maxWidth = DefaultScreenshotWidth
	}
	return &ScreenshotHook{dir: dir, maxWidth: maxWidth}
}

// AfterVisit captures, downsizes and writes the screenshot.
// Browsers without rendering support are skipped silently.
func (h *ScreenshotHook) AfterVisit(ctx context.Context, page browser.Page, record *model.PageRecord) error {
	raw, err := page.Screenshot(ctx)
	if errors.Is(err, browser.ErrScreenshotUnsupported) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to decode screenshot: %w", err)
	}
	img = h.fit(img)

	if err := os.MkdirAll(h.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	path := filepath.Join(h.dir, ScreenshotName(record.Path))
	f, err := os.Create(path) //nolint:gosec // path is built from a sanitized name
	if err != nil {
		return fmt.Errorf("failed to create screenshot file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode screenshot: %w", err)
	}
	return f.Close()
}

// fit downsizes img to the maximum width, keeping the aspect ratio.
func (h *ScreenshotHook) fit(img image.Image) image.Image {
	if uint(img.Bounds().Dx()) <= h.maxWidth {
		return img
	}
	return resize.Resize(h.maxWidth, 0, img, resize.Lanczos3)
}

// ScreenshotName maps a page path to a file name ("/" is "index.png",
// "/a/b" is "a_b.png").
func ScreenshotName(pagePath string) string {
	name := strings.Trim(pagePath, "/")
	if name == "" {
		return "index.png"
	}
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String() + ".png"
}
