package body

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/nao1215/socialmark/internal/model"
)

// Header markers searched for in the decoded text.
const (
	jsonMarker = "Content-Type: application/json"
	formMarker = "Content-Type: application/x-www-form-urlencoded"

	// headerSeparator ends the header block of a multiplexed upload stream.
	headerSeparator = "\r\n\r\n"
)

var (
	// ErrParse is returned when a body declared as JSON is not valid JSON.
	ErrParse = errors.New("failed to parse post data")

	// ErrMissingSeparator is returned when a Content-Type marker is present
	// but no blank line separates the headers from the payload.
	ErrMissingSeparator = errors.New("post data has a content type header but no payload separator")
)

// ParsePostData converts decoded text into a structured body.
//
// Rules, in order:
//  1. text containing the JSON Content-Type marker: the remainder after the
//     first blank line is parsed as JSON; invalid JSON is an ErrParse
//  2. text containing the form Content-Type marker: the remainder after the
//     first blank line is parsed as form data
//  3. anything else is parsed as form data in full
//
// Empty text yields an empty form mapping.
func ParsePostData(text string) (model.DecodedBody, error) {
	if text == "" {
		return model.EmptyBody(), nil
	}

	switch {
	case strings.Contains(text, jsonMarker):
		payload, err := payloadAfterHeaders(text)
		if err != nil {
			return model.EmptyBody(), err
		}
		var doc any
		if err := json.Unmarshal([]byte(payload), &doc); err != nil {
			return model.EmptyBody(), fmt.Errorf("%w: %w", ErrParse, err)
		}
		return model.DecodedBody{Kind: model.BodyJSON, JSON: doc}, nil

	case strings.Contains(text, formMarker):
		payload, err := payloadAfterHeaders(text)
		if err != nil {
			return model.EmptyBody(), err
		}
		return ParseForm(payload), nil

	default:
		return ParseForm(text), nil
	}
}

// payloadAfterHeaders returns everything after the first header separator.
func payloadAfterHeaders(text string) (string, error) {
	_, payload, found := strings.Cut(text, headerSeparator)
	if !found {
		return "", fmt.Errorf("%w: %w", ErrParse, ErrMissingSeparator)
	}
	return payload, nil
}

// ParseForm decodes an application/x-www-form-urlencoded payload.
// Pairs are split on '&' and then on the first '='. Values are
// plus/percent-decoded; names are kept verbatim. When a name repeats, the
// last value wins. Empty pairs are skipped and a pair without '=' maps to "".
func ParseForm(payload string) model.DecodedBody {
	data := make(map[string]string)
	for _, pair := range strings.Split(payload, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		data[name] = unescapeValue(value)
	}
	return model.DecodedBody{Kind: model.BodyForm, Form: data}
}

// unescapeValue decodes '+' to space and percent escapes.
// Malformed escapes are kept literally instead of discarding the value.
func unescapeValue(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
