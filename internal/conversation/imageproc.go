package conversation

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

func init() {
	// x/image's bmp and webp decoders don't self-register with the image
	// package the way the stdlib gif/png/jpeg codecs do, so register them
	// explicitly to cover the MIME types listed in imageMIMETypes.
	image.RegisterFormat("bmp", "BM", bmp.Decode, bmp.DecodeConfig)
	image.RegisterFormat("webp", "RIFF????WEBP", webp.Decode, webp.DecodeConfig)
}

// detailProfile is the per-detail resize/quality ceiling applied before an
// image is injected into the next LLM turn.
type detailProfile struct {
	maxDim  int
	quality int
}

var detailProfiles = map[string]detailProfile{
	"low":  {maxDim: 512, quality: 75},
	"high": {maxDim: 2048, quality: 95},
	"auto": {maxDim: 1024, quality: 85},
}

func profileForDetail(detail string) detailProfile {
	if p, ok := detailProfiles[detail]; ok {
		return p
	}
	return detailProfiles["auto"]
}

// reencodeForInjection decodes data, downscales it to the detail level's max
// dimension (aspect ratio preserved, no upscaling), and re-encodes as JPEG at
// the detail level's quality. Returns an error if data can't be decoded as an
// image the stdlib/x/image recognize.
func reencodeForInjection(data []byte, detail string) ([]byte, string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	profile := profileForDetail(detail)
	img = scaleToMax(img, profile.maxDim)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: profile.quality}); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// scaleToMax downscales img so neither dimension exceeds maxDim, preserving
// aspect ratio. Images already within bounds are returned unchanged.
func scaleToMax(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if maxDim <= 0 || (width <= maxDim && height <= maxDim) {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxDim
		newHeight = height * maxDim / width
	} else {
		newHeight = maxDim
		newWidth = width * maxDim / height
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
