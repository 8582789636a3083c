package importer

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/VividCortex/mysqlerr"
	"github.com/go-sql-driver/mysql"

	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/phpser"
	"github.com/reign-theme/demo-install/internal/sqldump"
	"github.com/reign-theme/demo-install/internal/wpdb"
)

// fakeStore is an in-memory WordPress database. It interprets dump
// statements with sqldump and answers the options and user-meta API the
// way wpdb does against MySQL.
type fakeStore struct {
	prefix string

	tables   map[string]*fakeTable
	options  map[string]model.OptionRow
	users    map[int64]model.UserRow
	usermeta []metaRow

	menus     []model.NavMenu
	menuItems []int64
	assigned  map[int64]int64

	fk              []bool
	execs           []string
	rawOptionWrites int
	flushes         int
}

type metaRow struct {
	ID     int64
	UserID int64
	Key    string
	Value  string
}

type fakeTable struct {
	rows  map[string][]string
	order []string
}

func newFakeTable() *fakeTable {
	return &fakeTable{rows: make(map[string][]string)}
}

func newFakeStore(prefix string) *fakeStore {
	s := &fakeStore{
		prefix:   prefix,
		tables:   make(map[string]*fakeTable),
		options:  make(map[string]model.OptionRow),
		users:    make(map[int64]model.UserRow),
		assigned: make(map[int64]int64),
	}
	for _, bare := range []string{"options", "users", "usermeta", "posts", "postmeta", "terms", "term_taxonomy", "term_relationships"} {
		s.tables[prefix+bare] = newFakeTable()
	}
	return s
}

func mysqlError(code uint16, format string, args ...any) error {
	return &mysql.MySQLError{Number: code, Message: fmt.Sprintf(format, args...)}
}

func (s *fakeStore) Prefix() string { return s.prefix }

func (s *fakeStore) Exec(_ context.Context, stmt string) error {
	s.execs = append(s.execs, stmt)
	st := sqldump.Classify(stmt)
	switch st.Verb {
	case sqldump.VerbSet, sqldump.VerbConditional:
		return nil
	case sqldump.VerbCreateTable:
		if _, ok := s.tables[st.Table]; ok {
			if st.IfExists {
				return nil
			}
			return mysqlError(mysqlerr.ER_TABLE_EXISTS_ERROR, "Table '%s' already exists", st.Table)
		}
		s.tables[st.Table] = newFakeTable()
		return nil
	case sqldump.VerbDropTable:
		if _, ok := s.tables[st.Table]; !ok {
			if st.IfExists {
				return nil
			}
			return mysqlError(mysqlerr.ER_BAD_TABLE_ERROR, "Unknown table '%s'", st.Table)
		}
		delete(s.tables, st.Table)
		return nil
	case sqldump.VerbInsert, sqldump.VerbReplace:
		ins, err := sqldump.ParseInsert(stmt)
		if err != nil {
			return mysqlError(mysqlerr.ER_PARSE_ERROR, "You have an error in your SQL syntax: %v", err)
		}
		if _, ok := s.tables[ins.Table]; !ok {
			return mysqlError(mysqlerr.ER_NO_SUCH_TABLE, "Table '%s' doesn't exist", ins.Table)
		}
		return s.insert(ins)
	}
	return mysqlError(mysqlerr.ER_PARSE_ERROR, "You have an error in your SQL syntax near '%.20s'", stmt)
}

func column(ins *sqldump.Insert, row sqldump.Row, name string, pos int) string {
	if len(ins.Columns) > 0 {
		pos = ins.ColumnIndex(name)
	}
	lit, ok := row.Column(pos)
	if !ok {
		return ""
	}
	return lit.Text
}

func (s *fakeStore) insert(ins *sqldump.Insert) error {
	replace := ins.Verb == sqldump.VerbReplace
	switch ins.Table {
	case s.prefix + "options":
		s.rawOptionWrites++
		return nil

	case s.prefix + "users":
		var add []model.UserRow
		for _, row := range ins.Rows {
			id, _ := strconv.ParseInt(column(ins, row, "ID", 0), 10, 64)
			u := model.UserRow{
				ID:       id,
				Login:    column(ins, row, "user_login", 1),
				PassHash: column(ins, row, "user_pass", 2),
				Email:    column(ins, row, "user_email", 4),
			}
			if s.userConflict(u) && !replace {
				if ins.Ignore {
					continue
				}
				return mysqlError(mysqlerr.ER_DUP_ENTRY, "Duplicate entry '%d' for key 'PRIMARY'", id)
			}
			add = append(add, u)
		}
		for _, u := range add {
			s.users[u.ID] = u
		}
		return nil

	case s.prefix + "usermeta":
		var add []metaRow
		for _, row := range ins.Rows {
			id, _ := strconv.ParseInt(column(ins, row, "umeta_id", 0), 10, 64)
			uid, _ := strconv.ParseInt(column(ins, row, "user_id", 1), 10, 64)
			m := metaRow{ID: id, UserID: uid, Key: column(ins, row, "meta_key", 2), Value: column(ins, row, "meta_value", 3)}
			if s.metaIndex(id) >= 0 {
				if ins.Ignore {
					continue
				}
				return mysqlError(mysqlerr.ER_DUP_ENTRY, "Duplicate entry '%d' for key 'PRIMARY'", id)
			}
			add = append(add, m)
		}
		s.usermeta = append(s.usermeta, add...)
		return nil
	}

	t := s.tables[ins.Table]
	for _, row := range ins.Rows {
		vals := make([]string, len(row.Values))
		for i, v := range row.Values {
			vals[i] = v.Text
		}
		key := vals[0]
		if _, ok := t.rows[key]; ok && !replace {
			if ins.Ignore {
				continue
			}
			return mysqlError(mysqlerr.ER_DUP_ENTRY, "Duplicate entry '%s' for key 'PRIMARY'", key)
		}
		if _, ok := t.rows[key]; !ok {
			t.order = append(t.order, key)
		}
		t.rows[key] = vals
	}
	return nil
}

func (s *fakeStore) userConflict(u model.UserRow) bool {
	if _, ok := s.users[u.ID]; ok {
		return true
	}
	for _, live := range s.users {
		if live.Login == u.Login {
			return true
		}
	}
	return false
}

func (s *fakeStore) metaIndex(id int64) int {
	for i, m := range s.usermeta {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (s *fakeStore) TableExists(_ context.Context, table string) (bool, error) {
	_, ok := s.tables[table]
	return ok, nil
}

func (s *fakeStore) Truncate(_ context.Context, table string) error {
	if _, ok := s.tables[table]; !ok {
		return mysqlError(mysqlerr.ER_NO_SUCH_TABLE, "Table '%s' doesn't exist", table)
	}
	s.tables[table] = newFakeTable()
	return nil
}

func (s *fakeStore) SetForeignKeyChecks(_ context.Context, enabled bool) error {
	s.fk = append(s.fk, enabled)
	return nil
}

func (s *fakeStore) RawOption(_ context.Context, name string) (string, bool, error) {
	o, ok := s.options[name]
	return o.Value, ok, nil
}

func (s *fakeStore) Option(ctx context.Context, name string) (phpser.Value, bool, error) {
	raw, found, _ := s.RawOption(ctx, name)
	if !found {
		return phpser.Null(), false, nil
	}
	v, _ := phpser.MaybeUnserialize(raw)
	return v, true, nil
}

func (s *fakeStore) UpdateOption(ctx context.Context, name string, v phpser.Value, autoload string) error {
	return s.SetRawOption(ctx, name, wpdb.EncodeOption(v), autoload)
}

func (s *fakeStore) SetRawOption(_ context.Context, name, raw, autoload string) error {
	s.options[name] = model.OptionRow{Name: name, Value: raw, Autoload: model.NormalizeAutoload(autoload)}
	return nil
}

func (s *fakeStore) DeleteOption(_ context.Context, name string) error {
	delete(s.options, name)
	return nil
}

// likeRegexp turns a MySQL LIKE pattern with backslash escapes into a
// regular expression.
func likeRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '\\':
			if i+1 < len(pattern) {
				i++
				b.WriteString(regexp.QuoteMeta(string(pattern[i])))
			}
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

func (s *fakeStore) OptionsLike(_ context.Context, namePattern, contains string) ([]model.OptionRow, error) {
	re := likeRegexp(namePattern)
	var out []model.OptionRow
	for _, name := range s.optionNames() {
		o := s.options[name]
		if re.MatchString(o.Name) && strings.Contains(o.Value, contains) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeStore) optionNames() []string {
	names := make([]string, 0, len(s.options))
	for name := range s.options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *fakeStore) UserMeta(_ context.Context, userID int64, key string) (string, bool, error) {
	for _, m := range s.usermeta {
		if m.UserID == userID && m.Key == key {
			return m.Value, true, nil
		}
	}
	return "", false, nil
}

func (s *fakeStore) SetUserMeta(_ context.Context, userID int64, key, value string) error {
	for i, m := range s.usermeta {
		if m.UserID == userID && m.Key == key {
			s.usermeta[i].Value = value
			return nil
		}
	}
	var max int64
	for _, m := range s.usermeta {
		if m.ID > max {
			max = m.ID
		}
	}
	s.usermeta = append(s.usermeta, metaRow{ID: max + 1, UserID: userID, Key: key, Value: value})
	return nil
}

func (s *fakeStore) DeleteUserMeta(_ context.Context, userID int64, key string) error {
	kept := s.usermeta[:0]
	for _, m := range s.usermeta {
		if m.UserID != userID || m.Key != key {
			kept = append(kept, m)
		}
	}
	s.usermeta = kept
	return nil
}

func (s *fakeStore) DropShadowedUserMeta(_ context.Context, from, to string) (int64, error) {
	shadowed := make(map[int64]bool)
	for _, m := range s.usermeta {
		if m.Key == from {
			shadowed[m.UserID] = true
		}
	}
	var n int64
	kept := s.usermeta[:0]
	for _, m := range s.usermeta {
		if m.Key == to && shadowed[m.UserID] {
			n++
			continue
		}
		kept = append(kept, m)
	}
	s.usermeta = kept
	return n, nil
}

func (s *fakeStore) RenameUserMetaKey(_ context.Context, from, to string) (int64, error) {
	var n int64
	for i, m := range s.usermeta {
		if m.Key == from {
			s.usermeta[i].Key = to
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) RenameUserMetaKeyPrefix(_ context.Context, from, to string) (int64, error) {
	var n int64
	for i, m := range s.usermeta {
		if strings.HasPrefix(m.Key, from) {
			s.usermeta[i].Key = to + m.Key[len(from):]
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) NavMenus(context.Context) ([]model.NavMenu, error) {
	return s.menus, nil
}

func (s *fakeStore) OrphanMenuItems(context.Context) ([]int64, error) {
	var out []int64
	for _, id := range s.menuItems {
		if _, ok := s.assigned[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *fakeStore) AssignToMenu(_ context.Context, objectID, termTaxonomyID int64) error {
	s.assigned[objectID] = termTaxonomyID
	return nil
}

func (s *fakeStore) FlushCache() { s.flushes++ }

// meta returns the value of a user-meta key, or "" and false.
func (s *fakeStore) meta(userID int64, key string) (string, bool) {
	v, ok, _ := s.UserMeta(context.Background(), userID, key)
	return v, ok
}

// rowKeys returns the primary keys of a generic table in insertion order.
func (s *fakeStore) rowKeys(table string) []string {
	t, ok := s.tables[table]
	if !ok {
		return nil
	}
	return append([]string(nil), t.order...)
}

// fakeState is the part of the store a re-run must leave unchanged.
type fakeState struct {
	Options  map[string]model.OptionRow
	Users    map[int64]model.UserRow
	Usermeta []metaRow
	Tables   map[string][]string
	Rows     map[string]map[string][]string
}

func (s *fakeStore) state() fakeState {
	st := fakeState{
		Options:  make(map[string]model.OptionRow, len(s.options)),
		Users:    make(map[int64]model.UserRow, len(s.users)),
		Usermeta: append([]metaRow(nil), s.usermeta...),
		Tables:   make(map[string][]string),
		Rows:     make(map[string]map[string][]string),
	}
	for k, v := range s.options {
		st.Options[k] = v
	}
	for k, v := range s.users {
		st.Users[k] = v
	}
	for name, t := range s.tables {
		st.Tables[name] = append([]string(nil), t.order...)
		rows := make(map[string][]string, len(t.rows))
		for k, v := range t.rows {
			rows[k] = append([]string(nil), v...)
		}
		st.Rows[name] = rows
	}
	return st
}

var _ Store = (*fakeStore)(nil)
