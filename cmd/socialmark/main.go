// Package main provides the entry point for the socialmark CLI.
//
// socialmark watches HTTP traffic for page shares to Facebook, Pocket and
// Twitter and records, per URL, the services the page was saved to.
//
// Usage:
//
//	socialmark watch
//	socialmark list --service twitter
//
// See --help for all available options.
package main

// main is the entry point for socialmark.
func main() {
	Execute()
}
