package util

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// SniffMimeForOCR returns the Yandex Vision mimeType value, or "" when the
// bytes are neither JPEG, PNG nor PDF.
func SniffMimeForOCR(b []byte) string {
	switch SniffMimeHTTP(b) {
	case "image/jpeg":
		return "JPEG"
	case "image/png":
		return "PNG"
	case "application/pdf":
		return "PDF"
	}
	return ""
}

func SniffMimeHTTP(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	if len(b) >= 5 && string(b[:5]) == "%PDF-" {
		return "application/pdf"
	}
	return http.DetectContentType(b)
}

// IsImage reports whether b looks like a raster image an OCR engine can read.
func IsImage(b []byte) bool {
	return len(b) > 0 && strings.HasPrefix(SniffMimeHTTP(b), "image/")
}

func MakeDataURL(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}

// DecodeBase64MaybeDataURL decodes plain or data-URI base64 and returns the
// MIME type from the data-URI prefix when there is one.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hintMIME string
	if strings.HasPrefix(s, "data:") {
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hintMIME = meta[:semi]
			} else {
				hintMIME = meta
			}
			s = s[idx+1:]
		}
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, hintMIME, nil
	} else if b2, err2 := base64.URLEncoding.DecodeString(s); err2 == nil {
		return b2, hintMIME, nil
	} else {
		return nil, "", err
	}
}
