// Package signature holds the table of watched sharing endpoints and the
// rules that extract the shared URL from their request payloads.
//
// A signature is a (URL prefix, service name, extraction rule) triple.
// Matching is a literal, case-sensitive prefix test over the table in
// declaration order; the first matching entry wins. Several entries may carry
// the same service name, which is how versioned endpoints of one service are
// described.
//
// The table is fixed at process start. There is intentionally no way to
// add or remove watched services at runtime.
package signature
