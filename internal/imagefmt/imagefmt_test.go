package imagefmt

import (
	"errors"
	"testing"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

func TestDetect(t *testing.T) {
	if ct, err := Detect(pngHeader); err != nil || ct != PNG {
		t.Errorf("expected png, got %s (%v)", ct, err)
	}
	if ct, err := Detect(jpegHeader); err != nil || ct != JPEG {
		t.Errorf("expected jpeg, got %s (%v)", ct, err)
	}
	if _, err := Detect([]byte("GIF89a")); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if _, err := Detect(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestDataURIRoundTrip(t *testing.T) {
	uri := DataURI(pngHeader, PNG)

	got, err := ParseDataURI(uri)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if string(got) != string(pngHeader) {
		t.Errorf("expected original bytes back")
	}
}

func TestParseDataURI_Invalid(t *testing.T) {
	if _, err := ParseDataURI("data:image/png,rawtext"); !errors.Is(err, ErrDataURI) {
		t.Errorf("expected ErrDataURI for non-base64 uri, got %v", err)
	}
	if _, err := ParseDataURI("data:image/png;base64,!!!"); !errors.Is(err, ErrDataURI) {
		t.Errorf("expected ErrDataURI for bad payload, got %v", err)
	}
}
