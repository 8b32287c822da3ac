package identity

import "errors"

var (
	// ErrInvalidProxy indicates a trusted proxy entry that is neither a
	// CIDR nor an IP address.
	ErrInvalidProxy = errors.New("identity: invalid trusted proxy")

	// ErrMissingSubject indicates a verified token without a subject claim.
	ErrMissingSubject = errors.New("identity: token has no subject")
)
