package model

import "fmt"

// AdminIdentity is the administrator authenticated in the process running the
// import. Rows belonging to this ID are never written by an import.
type AdminIdentity struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
}

// Valid reports whether the identity refers to a real user.
func (a *AdminIdentity) Valid() bool {
	return a != nil && a.ID > 0
}

func (a *AdminIdentity) String() string {
	if a == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s (#%d)", a.Login, a.ID)
}

// UserRow is the subset of a users-table row that identifies an account.
type UserRow struct {
	ID       int64  `db:"ID" json:"id"`
	Login    string `db:"user_login" json:"login"`
	Email    string `db:"user_email" json:"email"`
	PassHash string `db:"user_pass" json:"-"`
}

// PrefixMapping records the table prefix the dump was exported with and the
// prefix of the live installation.
type PrefixMapping struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Changed reports whether the import has to rewrite table references.
func (m PrefixMapping) Changed() bool {
	return m.Source != "" && m.Source != m.Target
}
