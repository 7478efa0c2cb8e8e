package utils

import "github.com/oklog/ulid/v2"

// NewID returns a lexicographically sortable unique identifier for a connection.
func NewID() string {
	return ulid.Make().String()
}
