package services

import (
	"fmt"
	"net/http"
	"strings"

	"picturereader/internal/models"
)

// supportedImageFormats maps sniffed MIME types to the short format names the
// Gemini SDK expects.
var supportedImageFormats = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// DetectImageFormat sniffs image and returns its MIME type and short format.
func DetectImageFormat(image []byte) (mimeType, format string, err error) {
	if len(image) == 0 {
		return "", "", fmt.Errorf("empty image: %w", models.ErrUnsupportedImage)
	}
	mimeType = http.DetectContentType(image)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	format, ok := supportedImageFormats[mimeType]
	if !ok {
		return mimeType, "", fmt.Errorf("%s: %w", mimeType, models.ErrUnsupportedImage)
	}
	return mimeType, format, nil
}
