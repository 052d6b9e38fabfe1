package gateway

import (
	"bytes"
	"fmt"
	"image/gif"
	"image/png"
)

// FlattenGIF re-encodes the first frame of a GIF upload as PNG for
// backends that do not read GIF. Other images are returned unchanged.
func FlattenGIF(data []byte, mimeType string) ([]byte, string, error) {
	if mimeType != "image/gif" {
		return data, mimeType, nil
	}
	img, err := gif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode gif: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}
