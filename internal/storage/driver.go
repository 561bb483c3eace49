package storage

import "context"

// PayloadKind selects the payload variant. The variant is always declared by
// the caller, never sniffed from content.
type PayloadKind int

const (
	// PayloadBytes is an opaque byte sequence; charset handling is bypassed.
	PayloadBytes PayloadKind = iota
	// PayloadText is character data with an explicit charset.
	PayloadText
)

// DefaultCharset labels text payloads that do not declare one.
const DefaultCharset = "utf-8"

// Payload is one serialized data unit exchanged between steps. Drivers store
// Data verbatim: no transcoding, compression, or newline translation. A read
// of a written key returns byte-identical content.
type Payload struct {
	Kind    PayloadKind
	Data    []byte
	Charset string // text payloads only
}

// Text builds a UTF-8 text payload.
func Text(s string) Payload {
	return Payload{Kind: PayloadText, Data: []byte(s), Charset: DefaultCharset}
}

// TextWithCharset builds a text payload labeled with the given charset. The
// bytes are stored as supplied; the charset is metadata for the backend's
// content-type, not a transcoding instruction.
func TextWithCharset(s, charset string) Payload {
	if charset == "" {
		charset = DefaultCharset
	}
	return Payload{Kind: PayloadText, Data: []byte(s), Charset: charset}
}

// Bytes builds an opaque byte payload.
func Bytes(b []byte) Payload {
	return Payload{Kind: PayloadBytes, Data: b}
}

// Text returns the payload bytes as a string, unmodified.
func (p Payload) Text() string {
	return string(p.Data)
}

// Driver is the capability contract every storage backend implements.
// Implementations never retry internally; retry policy belongs to the
// orchestration host, which already re-executes failed steps.
type Driver interface {
	// Write stores payload under key. Overwriting an existing key is
	// last-writer-wins with no versioning. Failures are reported as
	// *WriteError.
	Write(ctx context.Context, key Key, payload Payload) error

	// Read returns the full payload stored under key. A key that was never
	// written fails with ErrNotFound; transport and permission failures are
	// reported as *ReadError.
	Read(ctx context.Context, key Key) (Payload, error)

	// Exists probes for key without fetching its payload. Only transport
	// failures produce an error (*ReadError).
	Exists(ctx context.Context, key Key) (bool, error)

	// List returns the slot names stored under one step, sorted. A step that
	// wrote nothing yields an empty result, not an error.
	List(ctx context.Context, runID, stepID string) ([]string, error)

	// Location renders an informational path or URL for key, for logs and
	// error messages.
	Location(key Key) string
}
