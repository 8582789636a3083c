package importer

import (
	"fmt"
	"strconv"

	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/sqldump"
)

// identityGuard keeps the protected administrator's rows out of the users
// and usermeta tables and makes every other row conflict-tolerant.
type identityGuard struct {
	admin         model.AdminIdentity
	usersTable    string
	usermetaTable string
}

func newIdentityGuard(admin model.AdminIdentity, prefix string) *identityGuard {
	return &identityGuard{
		admin:         admin,
		usersTable:    prefix + "users",
		usermetaTable: prefix + "usermeta",
	}
}

// filter rewrites an INSERT or REPLACE into table as INSERT IGNORE without
// the administrator's rows. It returns "" when no row is left, along with
// the number of rows removed. A statement that cannot be parsed is never
// executed, since it cannot be shown to leave the administrator alone.
func (g *identityGuard) filter(stmt, table string) (string, int, error) {
	ins, err := sqldump.ParseInsert(stmt)
	if err != nil {
		return "", 0, fmt.Errorf("refusing unparsed insert into %s: %w", table, err)
	}

	col := g.ownerColumn(ins, table)
	if col < 0 {
		return "", 0, fmt.Errorf("insert into %s does not name its user ID column", table)
	}

	kept := make([]sqldump.Row, 0, len(ins.Rows))
	removed := 0
	for _, row := range ins.Rows {
		if g.owned(row, col) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	return ins.Build("INSERT IGNORE", kept), removed, nil
}

// ownerColumn is the position of the user ID: the first column of users,
// the second of usermeta, unless a column list says otherwise.
func (g *identityGuard) ownerColumn(ins *sqldump.Insert, table string) int {
	name, pos := "ID", 0
	if table == g.usermetaTable {
		name, pos = "user_id", 1
	}
	if len(ins.Columns) > 0 {
		return ins.ColumnIndex(name)
	}
	return pos
}

func (g *identityGuard) owned(row sqldump.Row, col int) bool {
	lit, ok := row.Column(col)
	if !ok {
		return false
	}
	switch lit.Kind {
	case sqldump.LitNumber, sqldump.LitString:
		id, err := strconv.ParseInt(lit.Text, 10, 64)
		return err == nil && id == g.admin.ID
	}
	return false
}
