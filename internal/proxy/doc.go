// Package proxy provides a plain-HTTP forward proxy that publishes every
// proxied transaction to the observer hub.
//
// For each request the proxy buffers the upload body, publishes a
// request-phase event, forwards the request upstream, and publishes a
// response-phase event once the response headers arrived. Both events
// share one seekable body reader. CONNECT requests are tunneled without
// inspection, so HTTPS traffic produces no events.
//
// Upstream connections can be routed through a SOCKS5 proxy.
package proxy
