package wpdb

import (
	"context"
	"fmt"

	"github.com/reign-theme/demo-install/internal/model"
)

// NavMenus returns the nav_menu terms ordered by term ID.
func (d *DB) NavMenus(ctx context.Context) ([]model.NavMenu, error) {
	var menus []model.NavMenu
	err := d.db.SelectContext(ctx, &menus,
		`SELECT t.term_id, tt.term_taxonomy_id, t.name, t.slug
		 FROM `+d.quoted("terms")+` t
		 JOIN `+d.quoted("term_taxonomy")+` tt ON tt.term_id = t.term_id
		 WHERE tt.taxonomy = 'nav_menu'
		 ORDER BY t.term_id`)
	if err != nil {
		return nil, fmt.Errorf("listing nav menus: %w", err)
	}
	return menus, nil
}

// OrphanMenuItems returns published nav_menu_item posts that belong to no
// nav menu.
func (d *DB) OrphanMenuItems(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := d.db.SelectContext(ctx, &ids,
		`SELECT p.ID FROM `+d.quoted("posts")+` p
		 WHERE p.post_type = 'nav_menu_item' AND p.post_status = 'publish'
		 AND NOT EXISTS (
			SELECT 1 FROM `+d.quoted("term_relationships")+` tr
			JOIN `+d.quoted("term_taxonomy")+` tt ON tt.term_taxonomy_id = tr.term_taxonomy_id
			WHERE tr.object_id = p.ID AND tt.taxonomy = 'nav_menu'
		 )
		 ORDER BY p.ID`)
	if err != nil {
		return nil, fmt.Errorf("finding orphan menu items: %w", err)
	}
	return ids, nil
}

// AssignToMenu links a post to a nav menu and refreshes the menu's count.
func (d *DB) AssignToMenu(ctx context.Context, objectID, termTaxonomyID int64) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT IGNORE INTO `+d.quoted("term_relationships")+` (object_id, term_taxonomy_id, term_order) VALUES (?, ?, 0)`,
		objectID, termTaxonomyID)
	if err != nil {
		return fmt.Errorf("assigning %d to menu %d: %w", objectID, termTaxonomyID, err)
	}
	_, err = d.db.ExecContext(ctx,
		`UPDATE `+d.quoted("term_taxonomy")+` SET count = (
			SELECT COUNT(*) FROM `+d.quoted("term_relationships")+` WHERE term_taxonomy_id = ?
		 ) WHERE term_taxonomy_id = ?`,
		termTaxonomyID, termTaxonomyID)
	if err != nil {
		return fmt.Errorf("updating count of menu %d: %w", termTaxonomyID, err)
	}
	return nil
}

// CountPosts returns how many posts of a type have the given status.
func (d *DB) CountPosts(ctx context.Context, postType, status string) (int64, error) {
	var n int64
	err := d.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM `+d.quoted("posts")+` WHERE post_type = ? AND post_status = ?`,
		postType, status)
	if err != nil {
		return 0, fmt.Errorf("counting %s posts: %w", postType, err)
	}
	return n, nil
}

// PostStatus returns the status and type of a post.
func (d *DB) PostStatus(ctx context.Context, id int64) (status, postType string, err error) {
	var row struct {
		Status string `db:"post_status"`
		Type   string `db:"post_type"`
	}
	err = d.db.GetContext(ctx, &row,
		`SELECT post_status, post_type FROM `+d.quoted("posts")+` WHERE ID = ?`, id)
	if err != nil {
		return "", "", fmt.Errorf("reading post %d: %w", id, notFound(err))
	}
	return row.Status, row.Type, nil
}
