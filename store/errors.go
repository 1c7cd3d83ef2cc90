package store

import (
	"strings"

	"github.com/volk7/alerting/errors"
)

// Sentinel errors returned by Store operations. Callers should compare
// with errors.Is, never string-match error text.
var (
	ErrNotFound = errors.New("alarm not found")
	ErrConflict = errors.New("alarm code_id already exists")
	ErrStaleCAS = errors.New("compare-and-set lost: status changed concurrently")
	ErrClosed   = errors.New("store is closed")
)

// IsClosed reports whether err indicates the underlying connection pool is
// closed. The string-match fallback covers raw driver errors that
// database/sql returns directly and cannot be wrapped at the source.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is closed") || strings.Contains(msg, "sql: database is closed")
}
