package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// DSN returns the driver connection string. For postgres a URL wins over the
// individual fields.
func (c *DatabaseConfig) DSN() (string, error) {
	switch c.Driver {
	case DriverSQLite:
		return SQLiteDSN(c.SQLitePath, c.BusyTimeout), nil
	case DriverMemory:
		return "", fmt.Errorf("the %s driver has no DSN", DriverMemory)
	}

	if c.URL != "" {
		return PostgresURLToDSN(c.URL)
	}

	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return keywordDSN(
		"host", c.Host,
		"port", strconv.Itoa(c.Port),
		"user", c.User,
		"password", c.Password,
		"dbname", c.Database,
		"sslmode", sslMode,
	), nil
}

// Target names the database without credentials, for logs and health output.
func (c *DatabaseConfig) Target() string {
	switch c.Driver {
	case DriverSQLite:
		return "sqlite3:" + c.SQLitePath
	case DriverMemory:
		return DriverMemory
	}

	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return "postgres:<invalid url>"
		}
		return "postgres:" + u.Host + u.Path
	}
	return "postgres:" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) + "/" + c.Database
}

// PostgresURLToDSN converts a postgres:// or postgresql:// URL into a libpq
// keyword DSN, defaulting sslmode to disable.
func PostgresURLToDSN(rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("database URL is empty")
	}

	dsn, err := pq.ParseURL(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid database URL: %w", err)
	}
	if !strings.Contains(dsn, "sslmode=") {
		dsn += " sslmode=disable"
	}
	return dsn, nil
}

// keywordDSN joins key/value pairs, quoting values the way libpq expects.
// Empty values are left out.
func keywordDSN(pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		parts = append(parts, pairs[i]+"="+quoteDSNValue(pairs[i+1]))
	}
	return strings.Join(parts, " ")
}

func quoteDSNValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// SQLiteDSN builds a go-sqlite3 DSN for path.
// Transactions start with BEGIN IMMEDIATE so a dispense holds the writer lock
// from its first read, and the journal runs in WAL mode so readers never block.
func SQLiteDSN(path string, busyTimeout time.Duration) string {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}

	q := url.Values{}
	q.Set("_busy_timeout", strconv.FormatInt(busyTimeout.Milliseconds(), 10))
	q.Set("_foreign_keys", "on")
	q.Set("_journal_mode", "WAL")
	q.Set("_txlock", "immediate")

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + strings.TrimPrefix(path, "file:") + sep + q.Encode()
}
