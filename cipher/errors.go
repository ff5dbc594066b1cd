package cipher

import "errors"

// Error kinds, matching spec §7's error-kind taxonomy for this component.
var (
	// ErrDecryption covers both bad-padding and bad-tag failures: the
	// caller must not be able to distinguish the two (spec §7 policy on
	// cryptographic invariant violations).
	ErrDecryption          = errors.New("cipher: decryption failed")
	ErrInvalidArgument     = errors.New("cipher: invalid argument")
	ErrUnsupportedAlgo     = errors.New("cipher: unsupported algorithm")
	ErrLengthMismatch      = errors.New("cipher: length mismatch")
	ErrBadMode             = errors.New("cipher: bad mode for this cipher")
)
