package wpdb

import (
	"context"
	"fmt"

	"github.com/reign-theme/demo-install/internal/model"
)

const userColumns = `ID, user_login, user_email, user_pass`

// User returns the users-table row with the given ID.
func (d *DB) User(ctx context.Context, id int64) (model.UserRow, error) {
	var u model.UserRow
	err := d.db.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM `+d.quoted("users")+` WHERE ID = ?`, id)
	if err != nil {
		return model.UserRow{}, fmt.Errorf("reading user %d: %w", id, notFound(err))
	}
	return u, nil
}

// AdminByLogin resolves the identity of the account with the given login.
func (d *DB) AdminByLogin(ctx context.Context, login string) (model.AdminIdentity, error) {
	var u model.UserRow
	err := d.db.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM `+d.quoted("users")+` WHERE user_login = ?`, login)
	if err != nil {
		return model.AdminIdentity{}, fmt.Errorf("reading user %q: %w", login, notFound(err))
	}
	return model.AdminIdentity{ID: u.ID, Login: u.Login, Email: u.Email}, nil
}

// FirstAdministrator returns the lowest-ID user whose capabilities grant the
// administrator role.
func (d *DB) FirstAdministrator(ctx context.Context) (model.AdminIdentity, error) {
	var u model.UserRow
	err := d.db.GetContext(ctx, &u,
		`SELECT u.ID, u.user_login, u.user_email, u.user_pass
		 FROM `+d.quoted("users")+` u
		 JOIN `+d.quoted("usermeta")+` m ON m.user_id = u.ID
		 WHERE m.meta_key = ? AND m.meta_value LIKE ?
		 ORDER BY u.ID LIMIT 1`,
		d.Table("capabilities"), `%"administrator"%`)
	if err != nil {
		return model.AdminIdentity{}, fmt.Errorf("finding administrator: %w", notFound(err))
	}
	return model.AdminIdentity{ID: u.ID, Login: u.Login, Email: u.Email}, nil
}

// CountUsers returns the number of rows in the users table.
func (d *DB) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := d.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+d.quoted("users")); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// UserMeta returns the first value stored under key for a user.
func (d *DB) UserMeta(ctx context.Context, userID int64, key string) (string, bool, error) {
	var v string
	err := d.db.GetContext(ctx, &v,
		`SELECT meta_value FROM `+d.quoted("usermeta")+`
		 WHERE user_id = ? AND meta_key = ? ORDER BY umeta_id LIMIT 1`, userID, key)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading user meta %s for %d: %w", key, userID, err)
	}
	return v, true, nil
}

// SetUserMeta stores value under key for a user, updating existing rows or
// adding one.
func (d *DB) SetUserMeta(ctx context.Context, userID int64, key, value string) error {
	current, found, err := d.UserMeta(ctx, userID, key)
	if err != nil {
		return err
	}
	if found {
		if current == value {
			return nil
		}
		_, err = d.db.ExecContext(ctx,
			`UPDATE `+d.quoted("usermeta")+` SET meta_value = ? WHERE user_id = ? AND meta_key = ?`,
			value, userID, key)
	} else {
		_, err = d.db.ExecContext(ctx,
			`INSERT INTO `+d.quoted("usermeta")+` (user_id, meta_key, meta_value) VALUES (?, ?, ?)`,
			userID, key, value)
	}
	if err != nil {
		return fmt.Errorf("writing user meta %s for %d: %w", key, userID, err)
	}
	return nil
}

// DeleteUserMeta removes every value of key for a user.
func (d *DB) DeleteUserMeta(ctx context.Context, userID int64, key string) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM `+d.quoted("usermeta")+` WHERE user_id = ? AND meta_key = ?`, userID, key)
	if err != nil {
		return fmt.Errorf("deleting user meta %s for %d: %w", key, userID, err)
	}
	return nil
}

// DropShadowedUserMeta deletes the to rows of every user that also has a
// from row, so renaming from to to leaves one row per user.
func (d *DB) DropShadowedUserMeta(ctx context.Context, from, to string) (int64, error) {
	table := d.quoted("usermeta")
	res, err := d.db.ExecContext(ctx,
		`DELETE t FROM `+table+` t
		 JOIN `+table+` s ON s.user_id = t.user_id AND s.meta_key = ?
		 WHERE t.meta_key = ?`, from, to)
	if err != nil {
		return 0, fmt.Errorf("dropping user meta %s shadowed by %s: %w", to, from, err)
	}
	return res.RowsAffected()
}

// RenameUserMetaKey renames a meta key across all users.
func (d *DB) RenameUserMetaKey(ctx context.Context, from, to string) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`UPDATE `+d.quoted("usermeta")+` SET meta_key = ? WHERE meta_key = ?`, to, from)
	if err != nil {
		return 0, fmt.Errorf("renaming user meta %s: %w", from, err)
	}
	return res.RowsAffected()
}

// RenameUserMetaKeyPrefix replaces the leading from of every meta key that
// starts with it by to, across all users.
func (d *DB) RenameUserMetaKeyPrefix(ctx context.Context, from, to string) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`UPDATE `+d.quoted("usermeta")+`
		 SET meta_key = CONCAT(?, SUBSTRING(meta_key, ?))
		 WHERE meta_key LIKE ?`,
		to, len(from)+1, EscapeLike(from)+"%")
	if err != nil {
		return 0, fmt.Errorf("renaming user meta %s*: %w", from, err)
	}
	return res.RowsAffected()
}
