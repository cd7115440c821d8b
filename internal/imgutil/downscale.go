package imgutil

import (
	"bytes"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// maxAssistantEdgePx is the Assistant endpoint's image-input limit
// (SPEC_FULL §4.2); the Critic always receives the untouched original
// (spec.md §8 invariant 7) — this helper is never applied to that path.
const maxAssistantEdgePx = 1568

// DownscaleForAssistant shrinks a PNG screenshot so its long edge fits
// within maxAssistantEdgePx, re-encoding as PNG. A screenshot already
// within the limit is returned unchanged (same slice, no copy).
func DownscaleForAssistant(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	longEdge := b.Dx()
	if b.Dy() > longEdge {
		longEdge = b.Dy()
	}
	if longEdge <= maxAssistantEdgePx {
		return data, nil
	}

	var resized image.Image
	if b.Dx() >= b.Dy() {
		resized = imaging.Resize(img, maxAssistantEdgePx, 0, imaging.Lanczos)
	} else {
		resized = imaging.Resize(img, 0, maxAssistantEdgePx, imaging.Lanczos)
	}

	var out bytes.Buffer
	if err := png.Encode(&out, resized); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
