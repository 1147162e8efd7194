package storage

import (
	"errors"
	"io"
)

var (
	ErrNotFound = errors.New("storage: not found")
)

// StateIterFunc is used when iterating over the state store. Returning stop
// as true ends the iteration.
type StateIterFunc func(key, value []byte) (stop bool, err error)

// StateStorer defines methods required to get, set, delete values for
// different keys and close the underlying resources.
type StateStorer interface {
	// Get unmarshals the value stored under key into i. It returns
	// ErrNotFound if the key does not exist.
	Get(key string, i interface{}) (err error)
	Put(key string, i interface{}) (err error)
	Delete(key string) (err error)
	// Iterate calls iterFunc for every key with the given prefix in
	// lexicographic key order.
	Iterate(prefix string, iterFunc StateIterFunc) (err error)
	io.Closer
}
