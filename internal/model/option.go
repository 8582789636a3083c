package model

// Autoload values of the options table.
const (
	AutoloadYes = "yes"
	AutoloadNo  = "no"
)

// OptionRow is one row of the options table. Value holds the stored text,
// serialized when the option is an array or object.
type OptionRow struct {
	Name     string `db:"option_name" json:"name"`
	Value    string `db:"option_value" json:"value"`
	Autoload string `db:"autoload" json:"autoload"`
}

// NormalizeAutoload maps the spellings found in dumps onto yes/no. Newer
// WordPress versions write on/off/auto variants.
func NormalizeAutoload(v string) string {
	switch v {
	case "no", "off", "auto-off", "0", "false":
		return AutoloadNo
	default:
		return AutoloadYes
	}
}

// NavMenu is a nav_menu term.
type NavMenu struct {
	TermID         int64  `db:"term_id" json:"term_id"`
	TermTaxonomyID int64  `db:"term_taxonomy_id" json:"term_taxonomy_id"`
	Name           string `db:"name" json:"name"`
	Slug           string `db:"slug" json:"slug"`
}
