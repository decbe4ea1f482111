package analyzer

import (
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
)

// DefaultMIMEType is assumed when neither the payload nor the caller names one.
const DefaultMIMEType = "image/jpeg"

var (
	ErrMissingImage = errors.New("image is required")
	ErrInvalidImage = errors.New("image is not valid base64")
)

var dataURIPattern = regexp.MustCompile(`(?s)^data:([^;,]+);base64,(.*)$`)

// Image is a decoded upload.
type Image struct {
	Data     []byte
	MIMEType string
}

// ParseImage decodes a raw base64 string or a data:<mime>;base64,<data> URI.
// A MIME type embedded in the URI wins over mimeType.
func ParseImage(payload, mimeType string) (Image, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Image{}, ErrMissingImage
	}

	mime := strings.TrimSpace(mimeType)
	encoded := payload
	if matches := dataURIPattern.FindStringSubmatch(payload); len(matches) == 3 {
		mime = strings.TrimSpace(matches[1])
		encoded = matches[2]
	}
	if mime == "" {
		mime = DefaultMIMEType
	}

	data, err := decodeBase64(encoded)
	if err != nil {
		return Image{}, ErrInvalidImage
	}
	if len(data) == 0 {
		return Image{}, ErrMissingImage
	}
	return Image{Data: data, MIMEType: strings.ToLower(mime)}, nil
}

func decodeBase64(encoded string) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, encoded)

	var lastErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		data, err := enc.DecodeString(compact)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
