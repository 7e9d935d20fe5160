// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (cookies, tokens, secrets)
//   - Configurable log levels with verbose mode support
//   - Text or JSON output selected by configuration
//
// # Security Features
//
// Share requests observed by socialmark carry the user's session alongside
// the shared URL. The SecureHandler sanitizes:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Share form fields (fb_dtsg, authenticity_token, access_token, consumer_key)
//   - Secret values detected by pattern matching (JWTs, bearer tokens, keys)
//   - Credential query parameters inside URL values (access_token, oauth_token)
//
// Attributes nested in groups are sanitized too, so a decoded request body
// logged as a group never leaks its tokens. Even in verbose mode, sensitive
// values are masked.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, log.FormatText, true) // verbose=true
//
//	logger.Debug("request",
//	    "cookie", "session=abc123", // sanitized to "***REDACTED***"
//	    "url", "https://example.com",
//	)
//
//	slog.SetDefault(logger)
package log
