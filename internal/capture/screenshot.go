package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"menagent/internal/activity"
	"menagent/pkg/models"

	"github.com/kbinani/screenshot"
	"github.com/nfnt/resize"
)

// maxUploadWidth bounds the uploaded image size; larger captures are
// downscaled before encoding.
const maxUploadWidth = 1920

// ScreenshotSender uploads one captured image to the server.
type ScreenshotSender interface {
	SendScreenshot(ctx context.Context, shot models.ScreenshotUpload) error
}

// Shooter captures the primary display and uploads it. The blur flag is
// passed through; blurring itself happens server-side.
type Shooter struct {
	sender  ScreenshotSender
	windows activity.WindowProvider
}

// NewShooter creates a screenshot shooter. windows may be nil; the active
// window is then reported as "Unknown".
func NewShooter(sender ScreenshotSender, windows activity.WindowProvider) *Shooter {
	return &Shooter{sender: sender, windows: windows}
}

// Capture grabs the primary display, downscales it if needed and uploads it
// as a base64 PNG data URI.
func (s *Shooter) Capture(ctx context.Context, blurred bool) error {
	img, err := grabPrimaryDisplay()
	if err != nil {
		return err
	}

	if img.Bounds().Dx() > maxUploadWidth {
		img = resize.Resize(maxUploadWidth, 0, img, resize.Bilinear)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode screenshot: %w", err)
	}

	activeWindow := "Unknown"
	if s.windows != nil {
		if info, err := s.windows.ActiveWindow(); err == nil && info.App != "" {
			activeWindow = info.App
		}
	}

	return s.sender.SendScreenshot(ctx, models.ScreenshotUpload{
		ScreenshotBase64: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		ActiveWindow:     activeWindow,
		IsBlurred:        blurred,
	})
}

// grabPrimaryDisplay captures display 0 as an image.
func grabPrimaryDisplay() (image.Image, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays")
	}

	bounds := screenshot.GetDisplayBounds(0)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return img, nil
}
