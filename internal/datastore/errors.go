package datastore

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnreachable means the source could not be read at all
	ErrSourceUnreachable = errors.New("data source unreachable")

	// ErrMalformed means the source was read but could not be parsed
	ErrMalformed = errors.New("malformed data")

	// ErrEmptyDataset means the source parsed to zero records
	ErrEmptyDataset = errors.New("dataset is empty")
)

// LoadError is returned for every failed load. No charts are built when it occurs.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load dataset from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

func unreachable(err error) error {
	return fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
}
