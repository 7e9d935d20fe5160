// Package model defines the core data structures used throughout socialmark.
//
// This package contains the following main types:
//   - Event: A raw HTTP transaction observed by an event source
//   - DecodedBody: The structured form of a request payload
//   - SavedTo: The ordered list of services a URL was shared to
//   - AnnotatedPage: A stored URL together with its saved-to list
//   - ShareReport: Annotated pages summarized per service for output
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The event sources, the pipeline, the store, and the report
// writers all exchange these types, so centralizing them prevents import cycles.
package model
