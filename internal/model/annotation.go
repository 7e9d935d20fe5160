package model

import (
	"slices"
	"time"
)

// AnnotationName is the page annotation the saved-to list is stored under.
const AnnotationName = "action/saved"

// SavedTo is the ordered list of services a URL has been shared to.
// Order is the order of first share; names are distinct.
type SavedTo []string

// Contains reports whether service is already in the list.
func (s SavedTo) Contains(service string) bool {
	return slices.Contains(s, service)
}

// With returns a copy of the list with service appended.
// The receiver is never modified.
func (s SavedTo) With(service string) SavedTo {
	out := make(SavedTo, 0, len(s)+1)
	out = append(out, s...)
	return append(out, service)
}

// AnnotatedPage is a stored URL together with its saved-to list.
type AnnotatedPage struct {
	// URL is the canonical shared URL.
	URL string `json:"url"`

	// SavedTo lists the services the URL was shared to.
	SavedTo SavedTo `json:"saved_to"`

	// LastVisit is the most recent history visit recorded for the URL.
	LastVisit time.Time `json:"last_visit"`

	// VisitCount is the number of history visits recorded for the URL.
	VisitCount int `json:"visit_count"`
}
