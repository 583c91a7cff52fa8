package db

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/diewo77/go-backoffice/internal/config"
)

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

// withOverride copies the keys of a key=value DATABASE_DSN onto the
// connection fields of cfg. Keys absent from the override keep their
// DB_* value.
func withOverride(cfg config.DatabaseConfig) config.DatabaseConfig {
	if cfg.DSNRaw == "" || isURL(cfg.DSNRaw) {
		return cfg
	}
	for _, pair := range strings.Fields(cfg.DSNRaw) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(k) {
		case "host":
			cfg.Host = v
		case "port":
			if p, err := strconv.Atoi(v); err == nil {
				cfg.Port = p
			}
		case "user":
			cfg.User = v
		case "password":
			cfg.Password = v
		case "dbname":
			cfg.DBName = v
		case "sslmode":
			cfg.SSLMode = v
		}
	}
	return cfg
}

// ConnString is the DSN handed to the postgres driver. A key=value
// override is passed through with its whitespace collapsed and sslmode
// filled in from DB_SSLMODE when it is missing.
func ConnString(cfg config.DatabaseConfig) string {
	if cfg.DSNRaw == "" || isURL(cfg.DSNRaw) {
		return cfg.DSN()
	}
	s := strings.Join(strings.Fields(cfg.DSNRaw), " ")
	if !strings.Contains(strings.ToLower(s), "sslmode=") {
		s += " sslmode=" + cfg.SSLMode
	}
	return s
}

// MigrateURL is the URL form golang-migrate requires.
func MigrateURL(cfg config.DatabaseConfig) string {
	return withOverride(cfg).URL()
}

var passwordRe = regexp.MustCompile(`(?i)(password=)([^\s]+)`)

// MaskDSN hides the password of a key=value or URL DSN for logging.
func MaskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "***")
			return u.String()
		}
	}
	return passwordRe.ReplaceAllString(dsn, `${1}***`)
}
