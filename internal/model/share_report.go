package model

import (
	"sort"
	"time"
)

// ShareReport summarizes annotated pages for output.
type ShareReport struct {
	// GeneratedAt is when the report was built.
	GeneratedAt time.Time `json:"generated_at"`

	// Filter is the service the pages were filtered by, if any.
	Filter string `json:"filter,omitempty"`

	// Pages are the annotated pages, ordered by URL.
	Pages []AnnotatedPage `json:"pages"`

	// ServiceCounts maps each service to the number of pages shared to it.
	ServiceCounts map[string]int `json:"service_counts"`
}

// NewShareReport builds a report over pages.
func NewShareReport(pages []AnnotatedPage, filter string, now time.Time) *ShareReport {
	if pages == nil {
		pages = []AnnotatedPage{}
	}

	counts := make(map[string]int)
	for _, p := range pages {
		for _, s := range p.SavedTo {
			counts[s]++
		}
	}

	return &ShareReport{
		GeneratedAt:   now,
		Filter:        filter,
		Pages:         pages,
		ServiceCounts: counts,
	}
}

// Services returns the services present in the report, most shared first.
// Ties are ordered by name.
func (r *ShareReport) Services() []string {
	services := make([]string, 0, len(r.ServiceCounts))
	for s := range r.ServiceCounts {
		services = append(services, s)
	}
	sort.Slice(services, func(i, j int) bool {
		ci, cj := r.ServiceCounts[services[i]], r.ServiceCounts[services[j]]
		if ci != cj {
			return ci > cj
		}
		return services[i] < services[j]
	})
	return services
}

// TotalShares returns the number of page/service pairs in the report.
func (r *ShareReport) TotalShares() int {
	total := 0
	for _, c := range r.ServiceCounts {
		total += c
	}
	return total
}

// IsEmpty reports whether the report has no pages.
func (r *ShareReport) IsEmpty() bool {
	return len(r.Pages) == 0
}
