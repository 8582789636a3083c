package wpdb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/VividCortex/mysqlerr"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reign-theme/demo-install/internal/phpser"
)

func mockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return New(sqlx.NewDb(sqlDB, "mysql"), "wp_", zaptest.NewLogger(t)), mock
}

func TestTableExists(t *testing.T) {
	db, mock := mockDB(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?")).
		WithArgs("wp_custom").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(1))
	mock.ExpectQuery("information_schema").
		WithArgs("wp_missing").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(0))

	ok, err := db.TableExists(ctx, "wp_custom")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = db.TableExists(ctx, "wp_missing")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTruncateAndForeignKeyChecks(t *testing.T) {
	db, mock := mockDB(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("SET foreign_key_checks = 0")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("TRUNCATE TABLE `wp_posts`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SET foreign_key_checks = 1")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.SetForeignKeyChecks(ctx, false))
	require.NoError(t, db.Truncate(ctx, "wp_posts"))
	require.NoError(t, db.SetForeignKeyChecks(ctx, true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRawOptionIsCached(t *testing.T) {
	db, mock := mockDB(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT option_value FROM `wp_options` WHERE option_name = ?")).
		WithArgs("blogname").
		WillReturnRows(sqlmock.NewRows([]string{"option_value"}).AddRow("Live Site"))

	for i := 0; i < 3; i++ {
		v, found, err := db.RawOption(ctx, "blogname")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "Live Site", v)
	}
	require.NoError(t, mock.ExpectationsWereMet())

	db.FlushCache()
	mock.ExpectQuery("SELECT option_value").
		WithArgs("blogname").
		WillReturnRows(sqlmock.NewRows([]string{"option_value"}))
	_, found, err := db.RawOption(ctx, "blogname")
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOptionUpserts(t *testing.T) {
	db, mock := mockDB(t)
	ctx := context.Background()

	mods := phpser.Array(phpser.Pair("custom_logo", phpser.Int(5)))
	encoded := `a:1:{s:11:"custom_logo";i:5;}`

	mock.ExpectQuery("SELECT option_value").
		WithArgs("theme_mods_reign").
		WillReturnRows(sqlmock.NewRows([]string{"option_value"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `wp_options` (option_name, option_value, autoload) VALUES (?, ?, ?)")).
		WithArgs("theme_mods_reign", encoded, "yes").
		WillReturnResult(sqlmock.NewResult(1, 1))
	// The write evicted the cache entry, so the next read hits the database.
	mock.ExpectQuery("SELECT option_value").
		WithArgs("theme_mods_reign").
		WillReturnRows(sqlmock.NewRows([]string{"option_value"}).AddRow(encoded))

	require.NoError(t, db.UpdateOption(ctx, "theme_mods_reign", mods, "on"))

	got, found, err := db.Option(ctx, "theme_mods_reign")
	require.NoError(t, err)
	require.True(t, found)
	logo, ok := got.Lookup("custom_logo")
	require.True(t, ok)
	require.Equal(t, int64(5), logo.Int)

	// Same value again: no write.
	require.NoError(t, db.UpdateOption(ctx, "theme_mods_reign", mods, "yes"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteOption(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `wp_options` WHERE option_name = ?")).
		WithArgs("old_user_roles").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, db.DeleteOption(context.Background(), "old_user_roles"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOptionsLikeEscapesContains(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectQuery("WHERE option_name LIKE \\? AND option_value LIKE \\?").
		WithArgs(`widget\_%`, `%old\_%`).
		WillReturnRows(sqlmock.NewRows([]string{"option_name", "option_value", "autoload"}).
			AddRow("widget_text", `a:1:{i:0;s:9:"old_posts";}`, "yes"))

	rows, err := db.OptionsLike(context.Background(), `widget\_%`, "old_")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "widget_text", rows[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetUserMeta(t *testing.T) {
	db, mock := mockDB(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT meta_value FROM `wp_usermeta`").
		WithArgs(int64(1), "wp_user_level").
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `wp_usermeta` (user_id, meta_key, meta_value) VALUES (?, ?, ?)")).
		WithArgs(int64(1), "wp_user_level", "10").
		WillReturnResult(sqlmock.NewResult(9, 1))
	require.NoError(t, db.SetUserMeta(ctx, 1, "wp_user_level", "10"))

	mock.ExpectQuery("SELECT meta_value FROM `wp_usermeta`").
		WithArgs(int64(1), "wp_user_level").
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}).AddRow("0"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `wp_usermeta` SET meta_value = ? WHERE user_id = ? AND meta_key = ?")).
		WithArgs("10", int64(1), "wp_user_level").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, db.SetUserMeta(ctx, 1, "wp_user_level", "10"))

	mock.ExpectQuery("SELECT meta_value FROM `wp_usermeta`").
		WithArgs(int64(1), "wp_user_level").
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}).AddRow("10"))
	require.NoError(t, db.SetUserMeta(ctx, 1, "wp_user_level", "10"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRenameUserMetaKeyPrefix(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("SET meta_key = CONCAT(?, SUBSTRING(meta_key, ?))")).
		WithArgs("wp_metaboxhidden_", 19, `old\_metaboxhidden\_%`).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := db.RenameUserMetaKeyPrefix(context.Background(), "old_metaboxhidden_", "wp_metaboxhidden_")
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDropShadowedUserMeta(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectExec("DELETE t FROM `wp_usermeta` t\\s+JOIN `wp_usermeta` s ON s.user_id = t.user_id AND s.meta_key = \\?\\s+WHERE t.meta_key = \\?").
		WithArgs("old_capabilities", "wp_capabilities").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := db.DropShadowedUserMeta(context.Background(), "old_capabilities", "wp_capabilities")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFirstAdministratorNotFound(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectQuery("JOIN `wp_usermeta` m ON m.user_id = u.ID").
		WithArgs("wp_capabilities", `%"administrator"%`).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "user_login", "user_email", "user_pass"}))

	_, err := db.FirstAdministrator(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminByLogin(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectQuery("WHERE user_login = \\?").
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"ID", "user_login", "user_email", "user_pass"}).
			AddRow(1, "admin", "admin@example.com", "$P$hash"))

	admin, err := db.AdminByLogin(context.Background(), "admin")
	require.NoError(t, err)
	require.Equal(t, int64(1), admin.ID)
	require.Equal(t, "admin@example.com", admin.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorClassification(t *testing.T) {
	dup := fmt.Errorf("exec: %w", &mysql.MySQLError{Number: mysqlerr.ER_DUP_ENTRY, Message: "Duplicate entry '2' for key 'PRIMARY'"})
	require.True(t, IsDuplicateEntry(dup))
	require.False(t, IsNoSuchTable(dup))
	require.False(t, IsConnectionError(dup))

	missing := &mysql.MySQLError{Number: mysqlerr.ER_NO_SUCH_TABLE, Message: "Table 'x.wp_nope' doesn't exist"}
	require.True(t, IsNoSuchTable(missing))
	require.False(t, IsDuplicateEntry(missing))

	require.False(t, IsDuplicateEntry(errors.New("Duplicate entry")))
	require.True(t, IsConnectionError(mysql.ErrInvalidConn))
	require.False(t, IsConnectionError(nil))
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `old\_`, EscapeLike("old_"))
	require.Equal(t, `100\%`, EscapeLike("100%"))
	require.Equal(t, `a\\b`, EscapeLike(`a\b`))
}

func TestEncodeOption(t *testing.T) {
	tests := []struct {
		in   phpser.Value
		want string
	}{
		{phpser.String("plain"), "plain"},
		{phpser.String(`a:0:{}`), `s:6:"a:0:{}";`},
		{phpser.Int(7), "7"},
		{phpser.Bool(true), "1"},
		{phpser.Bool(false), ""},
		{phpser.Array(phpser.Index(0, phpser.String("x"))), `a:1:{i:0;s:1:"x";}`},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, EncodeOption(tt.in))
	}
}

func TestOpenRejectsBadPrefix(t *testing.T) {
	_, err := Open(context.Background(), Config{DSN: "u:p@tcp(127.0.0.1:3306)/wp", Prefix: "wp-;"}, zaptest.NewLogger(t))
	require.Error(t, err)

	_, err = Open(context.Background(), Config{DSN: "u:p@tcp(127.0.0.1:3306)/", Prefix: "wp_"}, zaptest.NewLogger(t))
	require.Error(t, err)
}
