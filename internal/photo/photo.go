// Package photo converts task photos between files, raw bytes, and the base64
// data URLs stored in the offline queue.
package photo

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxBytes caps photo size so a single queued item stays reasonable in SQLite.
const MaxBytes = 15 << 20

// ErrNotImage reports content that does not sniff as an image.
var ErrNotImage = errors.New("not an image")

// Image is a decoded photo.
type Image struct {
	Data        []byte
	ContentType string
	// Extension includes the leading dot, e.g. ".jpg".
	Extension string
}

// Inspect sniffs data and returns it as an Image.
func Inspect(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, errors.New("photo is empty")
	}
	if len(data) > MaxBytes {
		return Image{}, fmt.Errorf("photo is %d bytes, limit is %d", len(data), MaxBytes)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return Image{}, fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}
	return Image{Data: data, ContentType: baseType(mt.String()), Extension: mt.Extension()}, nil
}

// Load reads an image file from disk.
func Load(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("read photo: %w", err)
	}
	img, err := Inspect(data)
	if err != nil {
		return Image{}, fmt.Errorf("photo %s: %w", path, err)
	}
	return img, nil
}

// DataURL encodes the image as "data:<type>;base64,<payload>".
func (img Image) DataURL() string {
	return "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// FileName builds the multipart file name for an upload, e.g. "before-1700000000000.png".
func (img Image) FileName(slot string, unixMilli int64) string {
	ext := img.Extension
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s-%d%s", slot, unixMilli, ext)
}

// ParseDataURL decodes a base64 data URL. The declared media type is ignored
// in favour of the sniffed one.
func ParseDataURL(value string) (Image, error) {
	rest, ok := strings.CutPrefix(value, "data:")
	if !ok {
		return Image{}, errors.New("photo is not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, errors.New("data URL has no payload")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return Image{}, errors.New("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("decode data URL: %w", err)
	}
	return Inspect(data)
}

func baseType(value string) string {
	if idx := strings.IndexByte(value, ';'); idx >= 0 {
		return strings.TrimSpace(value[:idx])
	}
	return value
}
