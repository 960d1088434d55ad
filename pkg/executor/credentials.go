package executor

import (
	"regexp"
	"strings"

	"github.com/hbmon/diskdiag/pkg/config"
)

// mysqlFamily matches the privileged database client invocations that may
// need credential injection.
var mysqlFamily = regexp.MustCompile(`^\s*(mysql|mysqldump|mysqladmin|mysqlcheck)\b`)

// passwordFlag captures -p / --password flags and their (possibly empty)
// inline value.
var passwordFlag = regexp.MustCompile(`(^|\s)(--password(?:=(\S*))?|-p(\S*))`)

// placeholderValue matches the stand-in values models emit instead of real
// secrets: <password>, [PASS], $MYSQL_PASSWORD, YOUR_PASSWORD, xxx…
var placeholderValue = regexp.MustCompile(`(?i)^(<.*>?|\[.*\]?|\$\w+|x{3,}|\*{3,}|(your_?)?(the_?)?pass(word)?|changeme|placeholder|secret)$`)

// injectCredentials rewrites a mysql-family command that carries a
// placeholder or interactive credential flag to use the credential set
// mapped to the target host. Commands with a literal secret embedded pass
// through unmodified; so do commands for hosts without a mapped credential
// set (with a warning), and commands outside the mysql family.
func (e *Executor) injectCredentials(targetHost, command string) string {
	if !mysqlFamily.MatchString(command) {
		return command
	}

	m := passwordFlag.FindStringSubmatch(command)
	if m == nil {
		return command
	}
	value := m[3]
	if value == "" {
		value = m[4]
	}
	if value != "" && !placeholderValue.MatchString(value) {
		// literal secret already present
		return command
	}

	cred, ok := e.lookupCredential(targetHost)
	if !ok {
		e.audit.Warn("no credential set mapped for host, passing command through", map[string]interface{}{
			"host": targetHost,
		})
		return command
	}

	// Plain concatenation: a replacement template would expand any $ inside
	// the credential values as group references. Only the inspected (first)
	// flag is rewritten.
	injected := false
	rewritten := passwordFlag.ReplaceAllStringFunc(command, func(match string) string {
		if injected {
			return match
		}
		injected = true
		sub := passwordFlag.FindStringSubmatch(match)
		return sub[1] + "-u'" + cred.User + "' -p'" + cred.Password + "'"
	})
	e.audit.Info("injected database credentials", map[string]interface{}{"host": targetHost})
	return rewritten
}

// lookupCredential resolves the credential set for a host, trying the exact
// name, then the short name, then the wildcard entry.
func (e *Executor) lookupCredential(targetHost string) (config.MySQLCredential, bool) {
	if cred, ok := e.creds[targetHost]; ok {
		return cred, true
	}
	if short, _, found := strings.Cut(targetHost, "."); found {
		if cred, ok := e.creds[short]; ok {
			return cred, true
		}
	}
	cred, ok := e.creds["default"]
	return cred, ok
}
