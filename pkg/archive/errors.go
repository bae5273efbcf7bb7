package archive

import "errors"

var (
	// ErrMalformedTree is returned when a node is neither a group nor a leaf,
	// or when leaf contents cannot be decoded.
	ErrMalformedTree = errors.New("archive: malformed tree")
	// ErrMissingGroup is returned when a required group is absent from the archive.
	ErrMissingGroup = errors.New("archive: missing group")
	// ErrNotNumeric is returned when numeric values are requested from a byte-string array.
	ErrNotNumeric = errors.New("archive: array is not numeric")
	// ErrNotText is returned when text values are requested from a numeric array.
	ErrNotText = errors.New("archive: array is not text")
)
