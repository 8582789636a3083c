package wpdb

import (
	"context"
	"fmt"

	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/phpser"
)

// RawOption returns the stored text of an option. Reads are cached until
// the option is written or FlushCache is called.
func (d *DB) RawOption(ctx context.Context, name string) (string, bool, error) {
	d.mu.Lock()
	c, ok := d.options[name]
	d.mu.Unlock()
	if ok {
		return c.value, c.found, nil
	}

	var value string
	err := d.db.GetContext(ctx, &value,
		`SELECT option_value FROM `+d.quoted("options")+` WHERE option_name = ? LIMIT 1`, name)
	found := true
	if err != nil {
		if notFound(err) != ErrNotFound {
			return "", false, fmt.Errorf("reading option %s: %w", name, err)
		}
		found = false
	}

	d.mu.Lock()
	d.options[name] = cachedOption{value: value, found: found}
	d.mu.Unlock()
	return value, found, nil
}

// Option returns an option decoded the way WordPress' get_option does:
// serialized text is unserialized, anything else is a string.
func (d *DB) Option(ctx context.Context, name string) (phpser.Value, bool, error) {
	raw, found, err := d.RawOption(ctx, name)
	if err != nil || !found {
		return phpser.Null(), found, err
	}
	v, _ := phpser.MaybeUnserialize(raw)
	return v, true, nil
}

// UpdateOption stores v under name, creating the option when it does not
// exist. Writing the value that is already stored is a no-op.
func (d *DB) UpdateOption(ctx context.Context, name string, v phpser.Value, autoload string) error {
	return d.SetRawOption(ctx, name, EncodeOption(v), autoload)
}

// SetRawOption stores already-encoded option text.
func (d *DB) SetRawOption(ctx context.Context, name, raw, autoload string) error {
	current, found, err := d.RawOption(ctx, name)
	if err != nil {
		return err
	}
	if found && current == raw {
		return nil
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO `+d.quoted("options")+` (option_name, option_value, autoload) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE option_value = VALUES(option_value), autoload = VALUES(autoload)`,
		name, raw, model.NormalizeAutoload(autoload))
	d.forget(name)
	if err != nil {
		return fmt.Errorf("updating option %s: %w", name, err)
	}
	return nil
}

// DeleteOption removes an option. Deleting a missing option is not an error.
func (d *DB) DeleteOption(ctx context.Context, name string) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM `+d.quoted("options")+` WHERE option_name = ?`, name)
	d.forget(name)
	if err != nil {
		return fmt.Errorf("deleting option %s: %w", name, err)
	}
	return nil
}

// OptionsLike returns the options whose name matches the LIKE pattern and
// whose value contains the given text.
func (d *DB) OptionsLike(ctx context.Context, namePattern, contains string) ([]model.OptionRow, error) {
	var rows []model.OptionRow
	err := d.db.SelectContext(ctx, &rows,
		`SELECT option_name, option_value, autoload FROM `+d.quoted("options")+`
		 WHERE option_name LIKE ? AND option_value LIKE ? ORDER BY option_id`,
		namePattern, "%"+EscapeLike(contains)+"%")
	if err != nil {
		return nil, fmt.Errorf("scanning options like %s: %w", namePattern, err)
	}
	return rows, nil
}

func (d *DB) forget(name string) {
	d.mu.Lock()
	delete(d.options, name)
	d.mu.Unlock()
}

// EncodeOption renders v the way WordPress' maybe_serialize stores it:
// arrays and objects are serialized, strings that already look serialized
// are serialized again, other scalars are stored as text.
func EncodeOption(v phpser.Value) string {
	switch v.Kind {
	case phpser.KindArray, phpser.KindObject, phpser.KindCustom:
		return phpser.Serialize(v)
	case phpser.KindString:
		if phpser.IsSerialized(v.Str) {
			return phpser.Serialize(v)
		}
		return v.Str
	default:
		return v.Text()
	}
}
