// Package imagefmt validates uploaded page images and converts them to and
// from data URIs.
package imagefmt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	PNG  = "image/png"
	JPEG = "image/jpeg"
)

var (
	ErrUnsupported = errors.New("unsupported image format: only PNG and JPEG are accepted")
	ErrEmpty       = errors.New("image is empty")
	ErrDataURI     = errors.New("invalid data URI")
)

// Detect sniffs the content type of data and accepts only PNG and JPEG.
func Detect(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	switch ct := http.DetectContentType(data); ct {
	case PNG, JPEG:
		return ct, nil
	default:
		return "", fmt.Errorf("%w (got %s)", ErrUnsupported, ct)
	}
}

// ParseDataURI decodes a base64 data URI such as "data:image/png;base64,...".
// It also accepts bare base64.
func ParseDataURI(uri string) ([]byte, error) {
	payload := strings.TrimSpace(uri)
	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, ErrDataURI
		}
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataURI, err)
	}
	return data, nil
}

// DataURI encodes data as a base64 data URI of the given content type.
func DataURI(data []byte, contentType string) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Extension returns the file extension for a supported content type.
func Extension(contentType string) string {
	if contentType == JPEG {
		return ".jpg"
	}
	return ".png"
}
