package compress

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
)

const jpegDataURLPrefix = "data:image/jpeg;base64,"

// DataURL renders a JPEG payload the way the remote endpoint receives it.
func DataURL(data []byte) string {
	return jpegDataURLPrefix + base64.StdEncoding.EncodeToString(data)
}

// SizeKB estimates the stored size of an n-byte JPEG from the length of its
// data URL: round(len × 0.75 / 1024).
func SizeKB(n int) int {
	urlLen := len(jpegDataURLPrefix) + base64.StdEncoding.EncodedLen(n)
	return int(math.Round(float64(urlLen) * 0.75 / 1024))
}

// ParseDataURL decodes a base64 data URL of any image media type.
func ParseDataURL(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "data:") {
		return nil, errors.New("not a data url")
	}
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, errors.New("data url is not base64")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return data, nil
}
