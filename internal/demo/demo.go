// Package demo reads the on-disk layout of an extracted demo package: its
// export metadata, the optional import order manifest and the per-table SQL
// dump files.
package demo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/reign-theme/demo-install/internal/model"
)

var (
	// ErrNoDatabaseDir is returned when the package has no database/ directory.
	ErrNoDatabaseDir = errors.New("database directory not found")
	// ErrNoDumpFiles is returned when no dump file could be resolved.
	ErrNoDumpFiles = errors.New("no SQL files found for import")
	// ErrNotSQLExport is returned when export-info.json names another export type.
	ErrNotSQLExport = errors.New("demo package is not an SQL export")
	// ErrInvalidID is returned for a demo id that is not a single path element.
	ErrInvalidID = errors.New("invalid demo id")
)

const (
	exportInfoFile  = "export-info.json"
	importOrderFile = "import-order.json"
	databaseDir     = "database"
	extractedDir    = "extracted"
)

// ExportInfo is the export tool's description of the package.
type ExportInfo struct {
	ExportType  string `json:"export_type"`
	Version     string `json:"version,omitempty"`
	SiteURL     string `json:"site_url,omitempty"`
	TablePrefix string `json:"table_prefix,omitempty"`
	ExportedAt  string `json:"exported_at,omitempty"`
}

// Package is an extracted demo on disk.
type Package struct {
	ID   string
	Root string
	Info *ExportInfo
	// Order is the manifest's table order, nil when the package has none.
	Order []string
	// Files are the resolved dump files, in manifest order when there is a
	// manifest and sorted by stem otherwise.
	Files []model.DumpFile
	// Missing lists manifest entries with no dump file.
	Missing []string
}

// Dir returns the extracted directory of demo id under demosDir.
func Dir(demosDir, id string) string {
	return filepath.Join(demosDir, id, extractedDir)
}

// Open resolves the package for demo id under demosDir. A missing
// export-info.json is tolerated; one that names a non-SQL export is not.
func Open(demosDir, id string) (*Package, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return nil, fmt.Errorf("%w %q", ErrInvalidID, id)
	}
	p := &Package{ID: id, Root: Dir(demosDir, id)}

	info, err := readExportInfo(filepath.Join(p.Root, exportInfoFile))
	if err != nil {
		return nil, err
	}
	if info != nil && info.ExportType != "sql" {
		return nil, fmt.Errorf("%w: export_type is %q", ErrNotSQLExport, info.ExportType)
	}
	p.Info = info

	dbDir := filepath.Join(p.Root, databaseDir)
	if st, err := os.Stat(dbDir); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoDatabaseDir, dbDir)
	}

	order, err := readImportOrder(filepath.Join(dbDir, importOrderFile))
	if err != nil {
		return nil, err
	}
	p.Order = order

	if order != nil {
		p.Files, p.Missing, err = resolveOrdered(dbDir, order)
	} else {
		p.Files, err = discover(dbDir)
	}
	if err != nil {
		return nil, err
	}
	if len(p.Files) == 0 {
		return nil, ErrNoDumpFiles
	}
	return p, nil
}

func readExportInfo(path string) (*ExportInfo, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", exportInfoFile, err)
	}
	if err := validate(exportInfoSchema, data, exportInfoFile); err != nil {
		return nil, err
	}
	var info ExportInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", exportInfoFile, err)
	}
	return &info, nil
}

func readImportOrder(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", importOrderFile, err)
	}
	if err := validate(importOrderSchema, data, importOrderFile); err != nil {
		return nil, err
	}
	var order []string
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", importOrderFile, err)
	}
	if order == nil {
		order = []string{}
	}
	return order, nil
}

// resolveOrdered maps manifest entries onto files, preferring the gzip
// variant when both exist. Duplicate entries are resolved once.
func resolveOrdered(dir string, order []string) ([]model.DumpFile, []string, error) {
	var files []model.DumpFile
	var missing []string
	seen := map[string]bool{}
	for _, stem := range order {
		if seen[stem] {
			continue
		}
		seen[stem] = true
		if strings.ContainsAny(stem, `/\`) {
			return nil, nil, fmt.Errorf("invalid table name %q in %s", stem, importOrderFile)
		}
		f, ok, err := stat(dir, stem)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			missing = append(missing, stem)
			continue
		}
		files = append(files, f)
	}
	return files, missing, nil
}

// discover lists every dump file in dir, one per stem.
func discover(dir string) ([]model.DumpFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	stems := map[string]bool{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if stem, ok := Stem(e.Name()); ok {
			stems[stem] = true
		}
	}
	names := make([]string, 0, len(stems))
	for s := range stems {
		names = append(names, s)
	}
	sort.Strings(names)

	files := make([]model.DumpFile, 0, len(names))
	for _, stem := range names {
		f, ok, err := stat(dir, stem)
		if err != nil {
			return nil, err
		}
		if ok {
			files = append(files, f)
		}
	}
	return files, nil
}

func stat(dir, stem string) (model.DumpFile, bool, error) {
	for _, c := range []struct {
		ext        string
		compressed bool
	}{{".sql.gz", true}, {".sql", false}} {
		path := filepath.Join(dir, stem+c.ext)
		st, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return model.DumpFile{}, false, fmt.Errorf("checking %s: %w", path, err)
		}
		return model.DumpFile{Stem: stem, Path: path, Compressed: c.compressed, Size: st.Size()}, true, nil
	}
	return model.DumpFile{}, false, nil
}

// Stem strips the .sql or .sql.gz extension from a file name.
func Stem(name string) (string, bool) {
	for _, ext := range []string{".sql.gz", ".sql"} {
		if strings.HasSuffix(name, ext) && len(name) > len(ext) {
			return strings.TrimSuffix(name, ext), true
		}
	}
	return "", false
}

// Load reads a dump file, decompressing it when needed.
func Load(f model.DumpFile) (string, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", f.Path, err)
	}
	defer fh.Close()

	var r io.Reader = fh
	if f.Compressed {
		zr, err := gzip.NewReader(fh)
		if err != nil {
			return "", fmt.Errorf("decompressing %s: %w", filepath.Base(f.Path), err)
		}
		defer zr.Close()
		r = zr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filepath.Base(f.Path), err)
	}
	return string(data), nil
}
