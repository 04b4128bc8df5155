package db

import (
	"strings"

	"github.com/teranos/rtsne/errors"
)

// ErrDatabaseClosed marks writes to the run history after the connection
// was closed, as happens when a server shuts down with embeddings in flight.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether err means the connection is gone. It
// matches ErrDatabaseClosed and the message database/sql returns, which
// carries no sentinel of its own.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// MarkClosed tags err with ErrDatabaseClosed when it means the connection is
// gone, and returns it unchanged otherwise.
func MarkClosed(err error) error {
	if err == nil || errors.Is(err, ErrDatabaseClosed) || !IsDatabaseClosed(err) {
		return err
	}
	return errors.Mark(err, ErrDatabaseClosed)
}
