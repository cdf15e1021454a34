package receipt

import (
	"errors"
	"fmt"
	"mime"
	"strings"
)

// MaxImageBytes is the largest receipt image accepted for extraction (200 KiB).
const MaxImageBytes = 200 * 1024

var (
	// ErrInvalidImage is matched by every image validation failure.
	ErrInvalidImage = errors.New("invalid receipt image")

	ErrNotAnImage    = fmt.Errorf("%w: media type is not image/*", ErrInvalidImage)
	ErrEmptyImage    = fmt.Errorf("%w: image is empty", ErrInvalidImage)
	ErrImageTooLarge = fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidImage, MaxImageBytes)

	// ErrExtractionFailed is matched by transport and response failures.
	ErrExtractionFailed = errors.New("receipt extraction failed")
)

// ValidateImage checks the media type and size of an upload before any
// network call is made. It returns the bare media type on success.
func ValidateImage(data []byte, mimeType string) (string, error) {
	mediaType, ok := imageMediaType(mimeType)
	if !ok {
		return "", ErrNotAnImage
	}
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	if len(data) > MaxImageBytes {
		return "", ErrImageTooLarge
	}
	return mediaType, nil
}

func imageMediaType(mimeType string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	}
	if !strings.HasPrefix(mediaType, "image/") || len(mediaType) == len("image/") {
		return "", false
	}
	return mediaType, true
}
