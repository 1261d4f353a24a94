package domain

import "errors"

// Error classes shared by adapters and the merger. Adapters wrap their
// failures with one of these so callers can branch with errors.Is.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrTransport           = errors.New("transport error")
	ErrEncoding            = errors.New("encoding error")
	ErrRelayUnavailable    = errors.New("relay unavailable")
	ErrRelayRejected       = errors.New("relay rejected submission")
	ErrMetadataNotFound    = errors.New("market metadata not found")
	ErrCredentialsNotReady = errors.New("relay credentials not ready")
	ErrDigestMismatch      = errors.New("digest mismatch")
	ErrConfig              = errors.New("invalid configuration")
)

var errorClasses = []struct {
	err  error
	name string
}{
	{ErrCredentialsNotReady, "credentials_not_ready"},
	{ErrDigestMismatch, "digest_mismatch"},
	{ErrRelayUnavailable, "relay_unavailable"},
	{ErrRelayRejected, "relay_rejected"},
	{ErrMetadataNotFound, "metadata_not_found"},
	{ErrEncoding, "encoding"},
	{ErrInvalidInput, "invalid_input"},
	{ErrTransport, "transport"},
	{ErrConfig, "config"},
}

// ErrorClass devuelve el nombre corto de la clase de error, "" si err es nil
// y "unknown" si no pertenece a la taxonomía.
func ErrorClass(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorClasses {
		if errors.Is(err, c.err) {
			return c.name
		}
	}
	return "unknown"
}
