package wpdb

import (
	"errors"
	"strings"

	"github.com/VividCortex/mysqlerr"
	"github.com/go-sql-driver/mysql"
)

// IsDuplicateEntry reports whether err is a MySQL duplicate-key error.
func IsDuplicateEntry(err error) bool {
	return hasCode(err, mysqlerr.ER_DUP_ENTRY, mysqlerr.ER_DUP_KEY)
}

// IsNoSuchTable reports whether err says a table does not exist.
func IsNoSuchTable(err error) bool {
	return hasCode(err, mysqlerr.ER_NO_SUCH_TABLE, mysqlerr.ER_BAD_TABLE_ERROR)
}

// IsConnectionError reports whether err means the server could not be
// reached at all, as opposed to rejecting a statement.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "bad connection")
}

func hasCode(err error, codes ...uint16) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	for _, c := range codes {
		if me.Number == c {
			return true
		}
	}
	return false
}

// EscapeLike escapes the LIKE wildcards in s.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
