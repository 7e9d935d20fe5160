package signature

import (
	"errors"
	"fmt"
	"net/url"

	json "github.com/goccy/go-json"

	"github.com/nao1215/socialmark/internal/model"
)

// ErrExtraction is returned when the expected field is absent or malformed.
// It aborts annotation for the current event only.
var ErrExtraction = errors.New("share extraction failed")

// URLField reads the top-level "url" field of the body.
// Pocket saves and Twitter intents carry the shared page there.
func URLField(body model.DecodedBody) (string, error) {
	v, ok := body.Field("url")
	if !ok {
		return "", fmt.Errorf("%w: missing url field", ErrExtraction)
	}
	return v, nil
}

// ShareActionObject reads the Facebook share dialog payload.
// The "share_action_properties" field is itself a JSON document whose
// "object" member is the shared URL.
func ShareActionObject(body model.DecodedBody) (string, error) {
	props, ok := body.Field("share_action_properties")
	if !ok {
		return "", fmt.Errorf("%w: missing share_action_properties field", ErrExtraction)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(props), &doc); err != nil {
		return "", fmt.Errorf("%w: malformed share_action_properties: %w", ErrExtraction, err)
	}

	object, ok := doc["object"].(string)
	if !ok {
		return "", fmt.Errorf("%w: share_action_properties has no object", ErrExtraction)
	}
	return object, nil
}

// ValidateSharedURL rejects values the annotation store could not key on:
// empty or unparsable strings and URLs without a scheme, or without either
// a host or an opaque part. Errors wrap ErrExtraction.
func ValidateSharedURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty url", ErrExtraction)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid url %q: %w", ErrExtraction, raw, err)
	}
	if u.Scheme == "" || (u.Host == "" && u.Opaque == "") {
		return fmt.Errorf("%w: url %q is not absolute", ErrExtraction, raw)
	}
	return nil
}
