// Package body turns raw request payloads into structured data.
//
// Decoding happens in two stages. ReadText reads the upload stream into text
// without disturbing a stream the host still needs to send, converting bytes
// with the declared charset on a best-effort basis. ParsePostData then turns
// that text into a form mapping or a JSON document.
//
// Content type detection is a substring search for the Content-Type header
// line anywhere in the text, not structured header parsing. Upload streams of
// some hosts include the multiplexed request headers ahead of the payload,
// and this approximation handles both that case and the bare-payload case.
package body
