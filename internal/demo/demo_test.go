package demo

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/reign-theme/demo-install/internal/model"
)

// mustLayout creates <tmp>/<id>/extracted with the given files and returns
// the demos directory.
func mustLayout(t *testing.T, id string, files map[string]string) string {
	t.Helper()
	demos := t.TempDir()
	root := Dir(demos, id)
	for name, body := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		data := []byte(body)
		if filepath.Ext(name) == ".gz" {
			data = gzipBytes(t, body)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return demos
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func stems(p *Package) []string {
	var out []string
	for _, f := range p.Files {
		out = append(out, f.Stem)
	}
	return out
}

func TestOpenWithManifest(t *testing.T) {
	demos := mustLayout(t, "reign-blog", map[string]string{
		"export-info.json":                `{"export_type":"sql","table_prefix":"wp_"}`,
		"database/import-order.json":      `["wp_users","wp_usermeta","wp_posts","wp_missing","wp_users"]`,
		"database/wp_users.sql":           "INSERT INTO wp_users VALUES (1);",
		"database/wp_usermeta.sql.gz":     "INSERT INTO wp_usermeta VALUES (1,1,'k','v');",
		"database/wp_posts.sql":           "plain",
		"database/wp_posts.sql.gz":        "compressed",
		"database/wp_not_in_manifest.sql": "ignored",
	})

	p, err := Open(demos, "reign-blog")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if got, want := stems(p), []string{"wp_users", "wp_usermeta", "wp_posts"}; !reflect.DeepEqual(got, want) {
		t.Errorf("stems = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(p.Missing, []string{"wp_missing"}) {
		t.Errorf("Missing = %v", p.Missing)
	}
	if p.Info == nil || p.Info.TablePrefix != "wp_" {
		t.Errorf("Info = %+v", p.Info)
	}

	posts := p.Files[2]
	if !posts.Compressed {
		t.Error("gzip variant not preferred")
	}
	body, err := Load(posts)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if body != "compressed" {
		t.Errorf("Load = %q, want compressed", body)
	}
}

func TestOpenWithoutManifestSortsStems(t *testing.T) {
	demos := mustLayout(t, "d", map[string]string{
		"database/wp_posts.sql":      "a",
		"database/wp_options.sql.gz": "b",
		"database/wp_options.sql":    "c",
		"database/readme.txt":        "x",
	})

	p, err := Open(demos, "d")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if p.Order != nil {
		t.Errorf("Order = %v, want nil", p.Order)
	}
	if got, want := stems(p), []string{"wp_options", "wp_posts"}; !reflect.DeepEqual(got, want) {
		t.Errorf("stems = %v, want %v", got, want)
	}
	if p.Info != nil {
		t.Errorf("Info = %+v, want nil", p.Info)
	}
}

func TestOpenErrors(t *testing.T) {
	t.Run("no database dir", func(t *testing.T) {
		demos := mustLayout(t, "d", map[string]string{"export-info.json": `{"export_type":"sql"}`})
		if _, err := Open(demos, "d"); !errors.Is(err, ErrNoDatabaseDir) {
			t.Errorf("error = %v, want ErrNoDatabaseDir", err)
		}
	})
	t.Run("no dump files", func(t *testing.T) {
		demos := mustLayout(t, "d", map[string]string{"database/import-order.json": `["wp_posts"]`})
		if _, err := Open(demos, "d"); !errors.Is(err, ErrNoDumpFiles) {
			t.Errorf("error = %v, want ErrNoDumpFiles", err)
		}
	})
	t.Run("json export", func(t *testing.T) {
		demos := mustLayout(t, "d", map[string]string{
			"export-info.json":      `{"export_type":"json"}`,
			"database/wp_posts.sql": "x",
		})
		if _, err := Open(demos, "d"); !errors.Is(err, ErrNotSQLExport) {
			t.Errorf("error = %v, want ErrNotSQLExport", err)
		}
	})
	t.Run("manifest schema violation", func(t *testing.T) {
		demos := mustLayout(t, "d", map[string]string{
			"database/import-order.json": `["wp_posts", 3, "../etc"]`,
			"database/wp_posts.sql":      "x",
		})
		_, err := Open(demos, "d")
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
		if len(verr.Problems) != 2 {
			t.Errorf("problems = %v, want 2", verr.Problems)
		}
	})
	t.Run("export info missing type", func(t *testing.T) {
		demos := mustLayout(t, "d", map[string]string{
			"export-info.json":      `{}`,
			"database/wp_posts.sql": "x",
		})
		var verr *ValidationError
		if _, err := Open(demos, "d"); !errors.As(err, &verr) {
			t.Errorf("error = %v, want ValidationError", err)
		}
	})
	t.Run("bad id", func(t *testing.T) {
		if _, err := Open(t.TempDir(), "../x"); err == nil {
			t.Error("expected error for path-like id")
		}
	})
}

func TestStem(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"wp_posts.sql", "wp_posts", true},
		{"wp_posts.sql.gz", "wp_posts", true},
		{"posts.SQL", "", false},
		{".sql", "", false},
		{"notes.txt", "", false},
	}
	for _, tt := range tests {
		got, ok := Stem(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Stem(%q) = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLoadCorruptGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wp_posts.sql.gz")
	if err := os.WriteFile(path, []byte("not gzip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(model.DumpFile{Stem: "wp_posts", Path: path, Compressed: true}); err == nil {
		t.Error("expected error for corrupt gzip")
	}
}
