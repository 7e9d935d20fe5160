package model

// BodyKind describes which representation a DecodedBody holds.
type BodyKind int

const (
	// BodyEmpty means there was no body or it could not be decoded.
	BodyEmpty BodyKind = iota

	// BodyForm means the body was form-encoded.
	BodyForm

	// BodyJSON means the body was a JSON document.
	BodyJSON
)

// String returns a human-readable name for the kind.
func (k BodyKind) String() string {
	switch k {
	case BodyEmpty:
		return "empty"
	case BodyForm:
		return "form"
	case BodyJSON:
		return "json"
	default:
		return "unknown"
	}
}

// DecodedBody is the structured representation of a request payload.
// Exactly one of Form or JSON is meaningful, selected by Kind.
type DecodedBody struct {
	Kind BodyKind

	// Form maps field names to their decoded values.
	Form map[string]string

	// JSON is the parsed document for JSON bodies.
	JSON any
}

// EmptyBody returns the neutral body used when nothing could be decoded.
func EmptyBody() DecodedBody {
	return DecodedBody{Kind: BodyEmpty, Form: map[string]string{}}
}

// Field returns the top-level string field called name.
// For form bodies this is the decoded value; for JSON bodies the document
// must be an object whose member is a string.
func (b DecodedBody) Field(name string) (string, bool) {
	switch b.Kind {
	case BodyForm:
		v, ok := b.Form[name]
		return v, ok
	case BodyJSON:
		obj, ok := b.JSON.(map[string]any)
		if !ok {
			return "", false
		}
		s, ok := obj[name].(string)
		return s, ok
	default:
		return "", false
	}
}
