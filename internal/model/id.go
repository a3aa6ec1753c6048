package model

import "github.com/oklog/ulid/v2"

// NewID returns a new lexically sortable identifier for accounts and
// transactions.
func NewID() string {
	return ulid.Make().String()
}
