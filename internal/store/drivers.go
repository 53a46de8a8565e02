// ABOUTME: SQL driver registration and DSN construction for the SQLite store
// ABOUTME: Supports the pure-Go modernc driver and the cgo mattn driver

package store

import (
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	// DriverModernc is the pure-Go driver registered by modernc.org/sqlite.
	DriverModernc = "sqlite"
	// DriverMattn is the cgo driver registered by github.com/mattn/go-sqlite3.
	DriverMattn = "sqlite3"
)

// SupportedDrivers lists the accepted values for database.driver.
var SupportedDrivers = []string{DriverModernc, DriverMattn}

// buildDSN returns a file URI with connection pragmas encoded in the form each
// driver understands. Pragmas travel in the DSN so every pooled connection gets them.
func buildDSN(driver, path string) (string, error) {
	q := url.Values{}
	switch driver {
	case DriverModernc:
		q.Add("_pragma", "foreign_keys(1)")
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "busy_timeout(5000)")
	case DriverMattn:
		q.Set("_foreign_keys", "on")
		q.Set("_journal_mode", "WAL")
		q.Set("_busy_timeout", "5000")
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
	return "file:" + path + "?" + q.Encode(), nil
}
