package sqlite

import (
	"strings"
	"time"

	"github.com/banshee-data/rangeseg/internal/timeutil"
)

const (
	busyRetries   = 5
	busyBaseDelay = 20 * time.Millisecond
)

// isBusy reports whether err is SQLite lock contention.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// retryOnBusy runs fn, retrying with exponential backoff while it fails
// with a busy error. Any other error is returned immediately.
func retryOnBusy(clock timeutil.Clock, fn func() error) error {
	delay := busyBaseDelay
	var err error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		if err = fn(); !isBusy(err) {
			return err
		}
		if attempt < busyRetries {
			logger.Printf("database busy, retry %d/%d in %s", attempt+1, busyRetries, delay)
			clock.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
