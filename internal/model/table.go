package model

import "fmt"

// TableClass decides whether a table's rows are merged into the live table
// or the table is truncated and replaced.
type TableClass string

const (
	ClassCriticalOptions TableClass = "critical-options"
	ClassCriticalUser    TableClass = "critical-user"
	ClassOrdinary        TableClass = "ordinary"
)

var validTableClasses = []TableClass{
	ClassCriticalOptions,
	ClassCriticalUser,
	ClassOrdinary,
}

// ValidateTableClass returns an error if c is not a recognized class.
func ValidateTableClass(c TableClass) error {
	for _, v := range validTableClasses {
		if c == v {
			return nil
		}
	}
	return fmt.Errorf("invalid table class %q: must be one of %v", c, validTableClasses)
}

// Critical reports whether rows of this class are merged rather than replaced.
func (c TableClass) Critical() bool {
	return c == ClassCriticalOptions || c == ClassCriticalUser
}

// Color returns a color name string suitable for terminal rendering.
func (c TableClass) Color() string {
	switch c {
	case ClassCriticalOptions:
		return "magenta"
	case ClassCriticalUser:
		return "red"
	default:
		return "gray"
	}
}

// ClassifyTable assigns a class to a live table name by comparing it with the
// reserved names of the target installation.
func ClassifyTable(table, prefix string) TableClass {
	switch table {
	case prefix + "options":
		return ClassCriticalOptions
	case prefix + "users", prefix + "usermeta":
		return ClassCriticalUser
	default:
		return ClassOrdinary
	}
}

// DumpFile is one table's exported data inside a demo package.
type DumpFile struct {
	// Stem is the file name without the .sql / .sql.gz extension. Export
	// tools name files either by bare table name ("posts") or by the full
	// source table name ("wp_posts").
	Stem       string `json:"stem"`
	Path       string `json:"path"`
	Compressed bool   `json:"compressed"`
	Size       int64  `json:"size"`
}
