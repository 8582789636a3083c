package importer

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const themeNameHeader = "Theme Name:"

// Themes finds an installed theme to fall back to when the active theme is
// missing after an import.
type Themes struct {
	// Dir is the themes directory; each theme is a subdirectory with a
	// style.css header.
	Dir string
	// Hint is matched case-insensitively against each theme's name.
	Hint string
	// Fallback is returned when no installed theme matches.
	Fallback string
}

// Resolve returns the slug found by Find, or Fallback.
func (t *Themes) Resolve() string {
	if t == nil {
		return ""
	}
	if slug, ok := t.Find(); ok {
		return slug
	}
	return t.Fallback
}

// Find returns the slug of the first installed theme, by directory name,
// whose Theme Name contains Hint.
func (t *Themes) Find() (string, bool) {
	if t == nil || t.Dir == "" || t.Hint == "" {
		return "", false
	}
	entries, err := os.ReadDir(t.Dir)
	if err != nil {
		return "", false
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	hint := strings.ToLower(t.Hint)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := themeName(filepath.Join(t.Dir, e.Name(), "style.css"))
		if name != "" && strings.Contains(strings.ToLower(name), hint) {
			return e.Name(), true
		}
	}
	return "", false
}

// themeName reads the Theme Name header from the top of a style.css.
func themeName(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for lines := 0; sc.Scan() && lines < 60; lines++ {
		line := strings.TrimSpace(sc.Text())
		line = strings.TrimLeft(line, "/* \t")
		if i := strings.Index(line, themeNameHeader); i >= 0 {
			return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line[i+len(themeNameHeader):]), "*/"))
		}
	}
	return ""
}
