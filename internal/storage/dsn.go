package storage

import "strings"

// SplitURL splits a URL-style connection string into its scheme and the
// remainder after "://". A SQLAlchemy driver suffix ("postgresql+psycopg")
// is dropped from the scheme. Strings without "://" return an empty scheme.
func SplitURL(dsn string) (scheme, rest string) {
	i := strings.Index(dsn, "://")
	if i < 0 {
		return "", dsn
	}
	scheme = strings.ToLower(dsn[:i])
	if j := strings.IndexByte(scheme, '+'); j >= 0 {
		scheme = scheme[:j]
	}
	return scheme, dsn[i+3:]
}
