package signature

import (
	"strings"

	"github.com/nao1215/socialmark/internal/model"
)

// ExtractFunc projects the shared URL out of a decoded request body.
type ExtractFunc func(body model.DecodedBody) (string, error)

// Service is a single watched sharing endpoint.
type Service struct {
	// Prefix is matched literally against the start of the request URL.
	Prefix string

	// Name identifies the service in annotations. It is not unique across
	// the table.
	Name string

	// extract is the service-specific projection rule.
	extract ExtractFunc
}

// NewService creates a Service. A nil extract rule falls back to reading the
// top-level "url" field.
func NewService(prefix, name string, extract ExtractFunc) Service {
	if extract == nil {
		extract = URLField
	}
	return Service{Prefix: prefix, Name: name, extract: extract}
}

// Extract returns the canonical shared URL carried by body.
// Every returned URL is absolute; anything else is an ErrExtraction.
func (s Service) Extract(body model.DecodedBody) (string, error) {
	raw, err := s.extract(body)
	if err != nil {
		return "", err
	}
	if err := ValidateSharedURL(raw); err != nil {
		return "", err
	}
	return raw, nil
}

// Table is an ordered, immutable list of watched services.
type Table struct {
	services []Service
}

// NewTable creates a Table from services in match order.
func NewTable(services ...Service) *Table {
	return &Table{services: append([]Service(nil), services...)}
}

// Match returns the first service whose prefix is a literal prefix of url.
func (t *Table) Match(url string) (Service, bool) {
	for _, s := range t.services {
		if strings.HasPrefix(url, s.Prefix) {
			return s, true
		}
	}
	return Service{}, false
}

// Services returns a copy of the table entries in match order.
func (t *Table) Services() []Service {
	return append([]Service(nil), t.services...)
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.services)
}

// Service names used by the default table.
const (
	Facebook = "facebook"
	Pocket   = "pocket"
	Twitter  = "twitter"
)

// defaultTable is built once; Table has no mutating methods.
var defaultTable = NewTable(
	NewService("https://www.facebook.com/v2.3/dialog/share/submit", Facebook, ShareActionObject),
	NewService("https://www.facebook.com/v2.0/dialog/share/submit", Facebook, ShareActionObject),
	NewService("https://api.getpocket.com/v3/firefox/save", Pocket, URLField),
	NewService("https://twitter.com/intent/tweet", Twitter, URLField),
)

// Default returns the built-in table of watched services.
func Default() *Table {
	return defaultTable
}

// Match looks url up in the default table.
func Match(url string) (Service, bool) {
	return defaultTable.Match(url)
}
