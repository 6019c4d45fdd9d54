package domain

import "errors"

var (
	// ErrSchema is returned when a required identifier or value column is absent.
	ErrSchema = errors.New("schema error")
	// ErrDecode is returned when a year header cannot be decoded.
	ErrDecode = errors.New("year decode error")
	// ErrInvalidValue is returned when a present cell is not a number.
	ErrInvalidValue = errors.New("invalid value")
	// ErrDuplicateKey is returned when an (entity, year) pair occurs twice in one table.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrIncompatibleConventions is returned when two tidy inputs were canonicalized differently.
	ErrIncompatibleConventions = errors.New("incompatible entity code conventions")
	// ErrEmptyJoin is returned when both inputs have rows but the merge emitted none.
	ErrEmptyJoin = errors.New("merge produced no rows from non-empty inputs")
	// ErrUnsupportedFormat is returned for file extensions other than csv and xlsx.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrContract is returned when a presentation consumer receives unusable rows.
	ErrContract = errors.New("table contract violated")
)
