package accessor

import "errors"

var (
	// ErrNoEndpoint is returned when the dataset has no endpoint with the accessor's name.
	ErrNoEndpoint = errors.New("no such endpoint")
	// ErrReservedKeyword is returned when a state preparer declares an engine keyword.
	ErrReservedKeyword = errors.New("keyword is reserved")
	ErrInvalidGroup    = errors.New("invalid grouping")
	ErrInvalidSort     = errors.New("invalid sort")
	ErrInvalidItems    = errors.New("invalid items")
	ErrUnknownField    = errors.New("unknown field")
	// ErrNoData is returned by One when the query matches nothing.
	ErrNoData = errors.New("no data")
)
