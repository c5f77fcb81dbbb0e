package logging

import (
	"regexp"

	"go.uber.org/zap"
)

// Redacted replaces every secret removed by the sanitizers.
const Redacted = "[REDACTED]"

type rule struct {
	re   *regexp.Regexp
	repl string
}

var (
	// key=value secrets in DSNs and query strings: password=, pwd=, apikey=, ...
	kvSecret = rule{
		re:   regexp.MustCompile(`(?i)\b(password|pwd|pass|api[_-]?key|apikey|access[_-]?token)=[^;&\s]+`),
		repl: "${1}=" + Redacted,
	}

	// user:pass@host in URLs. Greedy up to the last '@' so passwords that
	// themselves contain '@' are covered.
	userInfo = rule{
		re:   regexp.MustCompile(`://[^/\s:]+:\S+@([^/@\s]+)`),
		repl: "://" + Redacted + "@${1}",
	}

	bearer = rule{
		re:   regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_.=]+`),
		repl: "Bearer " + Redacted,
	}

	// Bare JWTs, which is what Supabase anon and service keys are.
	jwt = rule{
		re:   regexp.MustCompile(`\beyJ[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]*`),
		repl: Redacted,
	}
)

func apply(s string, rules ...rule) string {
	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

// SanitizeConnectionString redacts credentials from a DSN while keeping host,
// port and database visible.
func SanitizeConnectionString(dsn string) string {
	if dsn == "" {
		return ""
	}
	return apply(dsn, kvSecret, userInfo)
}

// SanitizeError renders err with DSN credentials, bearer tokens and API keys
// redacted.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return apply(err.Error(), kvSecret, bearer, jwt, userInfo)
}

// DSN is a zap field carrying a sanitized connection string.
func DSN(dsn string) zap.Field {
	return zap.String("dsn", SanitizeConnectionString(dsn))
}

// Error is a zap field carrying a sanitized error.
func Error(err error) zap.Field {
	return zap.String("error", SanitizeError(err))
}
