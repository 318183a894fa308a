package conversation

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestReencodeForInjectionShrinksPerDetail(t *testing.T) {
	src := encodeTestPNG(t, 3000, 1500)

	cases := []struct {
		detail  string
		maxDim  int
		quality int
	}{
		{"low", 512, 75},
		{"auto", 1024, 85},
		{"high", 2048, 95},
	}

	for _, tc := range cases {
		out, mimeType, err := reencodeForInjection(src, tc.detail)
		if err != nil {
			t.Fatalf("detail=%s: unexpected error: %v", tc.detail, err)
		}
		if mimeType != "image/jpeg" {
			t.Fatalf("detail=%s: expected image/jpeg, got %s", tc.detail, mimeType)
		}
		img, err := jpeg.Decode(bytes.NewReader(out))
		if err != nil {
			t.Fatalf("detail=%s: output isn't valid jpeg: %v", tc.detail, err)
		}
		bounds := img.Bounds()
		if bounds.Dx() > tc.maxDim || bounds.Dy() > tc.maxDim {
			t.Fatalf("detail=%s: got %dx%d, want within %d", tc.detail, bounds.Dx(), bounds.Dy(), tc.maxDim)
		}
		if bounds.Dx() != tc.maxDim && bounds.Dy() != tc.maxDim {
			t.Fatalf("detail=%s: expected one dimension to hit the cap exactly, got %dx%d", tc.detail, bounds.Dx(), bounds.Dy())
		}
	}
}

func TestReencodeForInjectionDefaultsUnknownDetailToAuto(t *testing.T) {
	src := encodeTestPNG(t, 3000, 1500)
	out, _, err := reencodeForInjection(src, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output isn't valid jpeg: %v", err)
	}
	if img.Bounds().Dx() != 1024 {
		t.Fatalf("expected unknown detail to fall back to auto (1024), got width %d", img.Bounds().Dx())
	}
}

func TestReencodeForInjectionLeavesSmallImagesUnscaled(t *testing.T) {
	src := encodeTestPNG(t, 100, 50)
	out, _, err := reencodeForInjection(src, "low")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output isn't valid jpeg: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Fatalf("expected dimensions unchanged at 100x50, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestReencodeForInjectionRejectsUndecodableData(t *testing.T) {
	_, _, err := reencodeForInjection([]byte("not an image"), "auto")
	if err == nil {
		t.Fatal("expected an error for undecodable input")
	}
}
