package browserworker

import (
	"context"

	"github.com/go-rod/rod/lib/proto"
)

// Screenshot returns the current viewport as PNG bytes (spec.md §4.3
// SCREENSHOT{options}).
func (w *Worker) Screenshot(ctx context.Context) ([]byte, error) {
	return w.currentPage(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}
