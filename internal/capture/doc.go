// Package capture provides event sources that feed recorded or remotely
// captured HTTP transactions into the observer hub.
//
// Three pieces share one wire format (WireEvent, one JSON object per
// transaction):
//   - Server accepts events over HTTP from a browser extension or any
//     other capturing client, optionally gzip compressed
//   - Replay reads JSON lines files (gzip when the name ends in .gz)
//   - Recorder subscribes to the hub and appends every observed event
//     to a JSON lines file that Replay can read back
//
// Bodies may be sent as text ("body") or as base64 ("body_base64") when
// they are not valid UTF-8 in the declared charset.
package capture
