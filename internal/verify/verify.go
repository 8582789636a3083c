// Package verify checks a WordPress site after a demo import: the
// protected administrator, the active theme, site URLs and the imported
// content.
package verify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/phpser"
	"github.com/reign-theme/demo-install/internal/wpdb"
)

// Store is the read side of the live database the checks need. *wpdb.DB
// implements it.
type Store interface {
	Prefix() string
	User(ctx context.Context, id int64) (model.UserRow, error)
	UserMeta(ctx context.Context, userID int64, key string) (string, bool, error)
	RawOption(ctx context.Context, name string) (string, bool, error)
	CountPosts(ctx context.Context, postType, status string) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	NavMenus(ctx context.Context) ([]model.NavMenu, error)
	PostStatus(ctx context.Context, id int64) (status, postType string, err error)
}

// Check names.
const (
	CheckAdminExists = "admin_exists"
	CheckAdminRole   = "admin_role"
	CheckTheme       = "theme_active"
	CheckURLs        = "urls_set"
	CheckPosts       = "posts_imported"
	CheckPages       = "pages_imported"
	CheckUsers       = "users_imported"
	CheckMenus       = "menus_imported"
	CheckFrontPage   = "homepage_set"
)

// Check is the outcome of one verification.
type Check struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Critical bool   `json:"critical"`
	Passed   bool   `json:"passed"`
	Detail   string `json:"detail"`
}

// Report is the full verification result. Passed is false when any critical
// check failed; failed non-critical checks are warnings.
type Report struct {
	Admin  model.AdminIdentity `json:"admin"`
	Checks []Check             `json:"checks"`
	Passed bool                `json:"passed"`
}

// Counts returns the number of passed checks, failed critical checks and
// warnings.
func (r *Report) Counts() (passed, failed, warnings int) {
	for _, c := range r.Checks {
		switch {
		case c.Passed:
			passed++
		case c.Critical:
			failed++
		default:
			warnings++
		}
	}
	return passed, failed, warnings
}

// Check returns the check with the given name.
func (r *Report) Check(name string) (Check, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

// Verifier runs the checks against a store.
type Verifier struct {
	store     Store
	themeHint string
}

// New returns a Verifier. themeHint is matched case-insensitively against
// the active stylesheet and template.
func New(store Store, themeHint string) *Verifier {
	return &Verifier{store: store, themeHint: themeHint}
}

// Run verifies the site for admin. Database errors abort the run; a failed
// check does not.
func (v *Verifier) Run(ctx context.Context, admin model.AdminIdentity) (*Report, error) {
	r := &Report{Admin: admin, Passed: true}
	add := func(c Check) {
		r.Checks = append(r.Checks, c)
		if c.Critical && !c.Passed {
			r.Passed = false
		}
	}

	checks := []func(context.Context, model.AdminIdentity) ([]Check, error){
		v.admin,
		v.theme,
		v.urls,
		v.content,
		v.menus,
		v.frontPage,
	}
	for _, fn := range checks {
		cs, err := fn(ctx, admin)
		if err != nil {
			return nil, err
		}
		for _, c := range cs {
			add(c)
		}
	}
	return r, nil
}

func (v *Verifier) admin(ctx context.Context, admin model.AdminIdentity) ([]Check, error) {
	exists := Check{Name: CheckAdminExists, Title: "Administrator exists", Critical: true}
	role := Check{Name: CheckAdminRole, Title: "Administrator role", Critical: true}

	if !admin.Valid() {
		exists.Detail = "no administrator identity"
		role.Detail = "skipped"
		return []Check{exists, role}, nil
	}
	u, err := v.store.User(ctx, admin.ID)
	switch {
	case errors.Is(err, wpdb.ErrNotFound):
		exists.Detail = fmt.Sprintf("user #%d not found", admin.ID)
		role.Detail = "skipped"
		return []Check{exists, role}, nil
	case err != nil:
		return nil, err
	}
	exists.Passed = true
	exists.Detail = u.Login

	key := v.store.Prefix() + "capabilities"
	raw, _, err := v.store.UserMeta(ctx, admin.ID, key)
	if err != nil {
		return nil, err
	}
	caps, _ := phpser.MaybeUnserialize(raw)
	if r, ok := caps.Lookup("administrator"); ok && r.Truthy() {
		role.Passed = true
		role.Detail = key
	} else {
		role.Detail = "administrator missing from " + key
	}
	return []Check{exists, role}, nil
}

func (v *Verifier) theme(ctx context.Context, _ model.AdminIdentity) ([]Check, error) {
	c := Check{Name: CheckTheme, Title: "Theme active", Critical: true}
	stylesheet, _, err := v.store.RawOption(ctx, "stylesheet")
	if err != nil {
		return nil, err
	}
	template, _, err := v.store.RawOption(ctx, "template")
	if err != nil {
		return nil, err
	}
	hint := strings.ToLower(v.themeHint)
	if hint != "" && (strings.Contains(strings.ToLower(stylesheet), hint) || strings.Contains(strings.ToLower(template), hint)) {
		c.Passed = true
	}
	c.Detail = fmt.Sprintf("stylesheet %q, template %q", stylesheet, template)
	return []Check{c}, nil
}

func (v *Verifier) urls(ctx context.Context, _ model.AdminIdentity) ([]Check, error) {
	c := Check{Name: CheckURLs, Title: "Site URLs set", Critical: true}
	home, _, err := v.store.RawOption(ctx, "home")
	if err != nil {
		return nil, err
	}
	siteURL, _, err := v.store.RawOption(ctx, "siteurl")
	if err != nil {
		return nil, err
	}
	c.Passed = home != "" && siteURL != ""
	c.Detail = fmt.Sprintf("home %q, siteurl %q", home, siteURL)
	return []Check{c}, nil
}

func (v *Verifier) content(ctx context.Context, _ model.AdminIdentity) ([]Check, error) {
	posts, err := v.store.CountPosts(ctx, "post", "publish")
	if err != nil {
		return nil, err
	}
	pages, err := v.store.CountPosts(ctx, "page", "publish")
	if err != nil {
		return nil, err
	}
	users, err := v.store.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	return []Check{
		{Name: CheckPosts, Title: "Published posts", Passed: posts > 0, Detail: strconv.FormatInt(posts, 10)},
		{Name: CheckPages, Title: "Published pages", Passed: pages > 0, Detail: strconv.FormatInt(pages, 10)},
		{Name: CheckUsers, Title: "Imported users", Passed: users > 1, Detail: strconv.FormatInt(users, 10)},
	}, nil
}

func (v *Verifier) menus(ctx context.Context, _ model.AdminIdentity) ([]Check, error) {
	menus, err := v.store.NavMenus(ctx)
	if err != nil {
		return nil, err
	}
	c := Check{Name: CheckMenus, Title: "Navigation menus", Passed: len(menus) > 0}
	names := make([]string, len(menus))
	for i, m := range menus {
		names[i] = m.Name
	}
	c.Detail = strconv.Itoa(len(menus))
	if len(names) > 0 {
		c.Detail += ": " + strings.Join(names, ", ")
	}
	return []Check{c}, nil
}

func (v *Verifier) frontPage(ctx context.Context, _ model.AdminIdentity) ([]Check, error) {
	c := Check{Name: CheckFrontPage, Title: "Static front page"}
	show, _, err := v.store.RawOption(ctx, "show_on_front")
	if err != nil {
		return nil, err
	}
	raw, _, err := v.store.RawOption(ctx, "page_on_front")
	if err != nil {
		return nil, err
	}
	id, _ := strconv.ParseInt(raw, 10, 64)
	if show != "page" || id <= 0 {
		c.Detail = "front page is not a static page"
		return []Check{c}, nil
	}

	status, postType, err := v.store.PostStatus(ctx, id)
	switch {
	case errors.Is(err, wpdb.ErrNotFound):
		c.Detail = fmt.Sprintf("page #%d not found", id)
	case err != nil:
		return nil, err
	case postType != "page" || status != "publish":
		c.Detail = fmt.Sprintf("#%d is a %s %s", id, status, postType)
	default:
		c.Passed = true
		c.Detail = fmt.Sprintf("page #%d", id)
	}
	return []Check{c}, nil
}
