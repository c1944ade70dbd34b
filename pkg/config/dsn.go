package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ApplyURL fills the connection fields from a postgres:// or postgresql:// URL.
// Query parameters other than sslmode and application_name are ignored.
func (c *DatabaseConfig) ApplyURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("database URL is empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("invalid database URL scheme: %s (expected postgres or postgresql)", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("database URL has no host")
	}

	port := 5432
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return fmt.Errorf("invalid port in database URL: %w", err)
		}
	}

	c.Host = u.Hostname()
	c.Port = port
	c.Database = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		c.User = u.User.Username()
		c.Password, _ = u.User.Password()
	}

	q := u.Query()
	c.SSLMode = q.Get("sslmode")
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if name := q.Get("application_name"); name != "" {
		c.ApplicationName = name
	}
	return nil
}

// DSN returns the libpq key/value connection string for lib/pq.
// application_name and statement_timeout are sent as startup parameters.
func (c *DatabaseConfig) DSN() string {
	parts := []string{
		"host=" + quoteDSN(c.Host),
		"port=" + strconv.Itoa(c.Port),
		"user=" + quoteDSN(c.User),
		"password=" + quoteDSN(c.Password),
		"dbname=" + quoteDSN(c.Database),
		"sslmode=" + quoteDSN(c.SSLMode),
	}
	if c.ApplicationName != "" {
		parts = append(parts, "application_name="+quoteDSN(c.ApplicationName))
	}
	if c.StatementTimeout > 0 {
		parts = append(parts, "statement_timeout="+strconv.FormatInt(int64(c.StatementTimeout/time.Millisecond), 10))
	}
	return strings.Join(parts, " ")
}

// Redacted describes the target database without the password, for logs
func (c *DatabaseConfig) Redacted() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.User(c.User),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.Database,
	}
	return u.String()
}

// quoteDSN quotes a value when libpq would otherwise split or misread it
func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
