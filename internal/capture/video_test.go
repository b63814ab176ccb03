package capture

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func TestPresetForKnownQualities(t *testing.T) {
	low := presetFor("low")
	medium := presetFor("medium")
	high := presetFor("high")

	if !(low.fps < medium.fps && medium.fps < high.fps) {
		t.Fatalf("fps not ordered: %d/%d/%d", low.fps, medium.fps, high.fps)
	}
	if !(low.bytesPerSecond < medium.bytesPerSecond && medium.bytesPerSecond < high.bytesPerSecond) {
		t.Fatalf("byte budgets not ordered")
	}
}

func TestPresetForUnknownQualityFallsBackToMedium(t *testing.T) {
	if presetFor("ultra") != presetFor("medium") {
		t.Fatalf("unknown quality did not fall back to medium")
	}
	if presetFor("") != presetFor("medium") {
		t.Fatalf("empty quality did not fall back to medium")
	}
}

func TestEncodeJPEGProducesValidImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), A: 255})
		}
	}

	data, err := encodeJPEG(img, 60)
	if err != nil {
		t.Fatalf("encodeJPEG() error: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("empty frame")
	}
	// JPEG SOI marker.
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Fatalf("frame does not start with a JPEG marker: % x", data[:2])
	}
}

func TestScreenSourceRejectsDoubleStart(t *testing.T) {
	s := NewScreenSource()
	if _, err := s.Start("low"); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Stop()

	if _, err := s.Start("low"); err == nil {
		t.Fatalf("second Start() succeeded while running")
	}
}
