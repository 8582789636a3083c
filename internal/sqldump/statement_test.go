package sqldump

import (
	"reflect"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want Statement
	}{
		{"INSERT INTO `wp_posts` VALUES (1)", Statement{Verb: VerbInsert, Table: "wp_posts"}},
		{"insert ignore into wp_users (ID) values (1)", Statement{Verb: VerbInsert, Table: "wp_users", Ignore: true}},
		{"INSERT LOW_PRIORITY IGNORE INTO `db`.`wp_x` VALUES (1)", Statement{Verb: VerbInsert, Table: "wp_x", Ignore: true}},
		{"REPLACE INTO wp_options VALUES (1)", Statement{Verb: VerbReplace, Table: "wp_options"}},
		{"CREATE TABLE `wp_custom` (id int)", Statement{Verb: VerbCreateTable, Table: "wp_custom"}},
		{"CREATE TABLE IF NOT EXISTS wp_custom (id int)", Statement{Verb: VerbCreateTable, Table: "wp_custom", IfExists: true}},
		{"DROP TABLE IF EXISTS `wp_custom`", Statement{Verb: VerbDropTable, Table: "wp_custom", IfExists: true}},
		{"ALTER TABLE `wp_posts` DISABLE KEYS", Statement{Verb: VerbAlterTable, Table: "wp_posts"}},
		{"TRUNCATE TABLE wp_posts", Statement{Verb: VerbTruncate, Table: "wp_posts"}},
		{"TRUNCATE wp_posts", Statement{Verb: VerbTruncate, Table: "wp_posts"}},
		{"UPDATE wp_posts SET x=1", Statement{Verb: VerbUpdate, Table: "wp_posts"}},
		{"DELETE FROM wp_posts WHERE 1", Statement{Verb: VerbDelete, Table: "wp_posts"}},
		{"LOCK TABLES `wp_posts` WRITE", Statement{Verb: VerbLock, Table: "wp_posts"}},
		{"UNLOCK TABLES", Statement{Verb: VerbUnlock}},
		{"SET NAMES utf8mb4", Statement{Verb: VerbSet}},
		{"/*!40101 SET NAMES utf8 */", Statement{Verb: VerbConditional}},
		{"CREATE INDEX i ON t (a)", Statement{Verb: VerbOther}},
		{"SELECT 1", Statement{Verb: VerbOther}},
		{"", Statement{Verb: VerbOther}},
	}
	for _, tt := range tests {
		if got := Classify(tt.in); got != tt.want {
			t.Errorf("Classify(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestSchemaStatements(t *testing.T) {
	dump := "-- header\n" +
		"DROP TABLE IF EXISTS `wp_custom`;\n" +
		"CREATE TABLE `wp_custom` (\n  `id` int NOT NULL,\n  `note` varchar(20) DEFAULT 'a;b'\n);\n" +
		"CREATE TABLE `wp_other` (id int);\n" +
		"INSERT INTO `wp_custom` VALUES (1,'x');\n"

	got := SchemaStatements(dump, "wp_custom")
	want := []string{
		"DROP TABLE IF EXISTS `wp_custom`",
		"CREATE TABLE `wp_custom` (\n  `id` int NOT NULL,\n  `note` varchar(20) DEFAULT 'a;b'\n)",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SchemaStatements = %q, want %q", got, want)
	}
	if !HasCreateTable(got) {
		t.Error("HasCreateTable = false, want true")
	}
	if HasCreateTable(got[:1]) {
		t.Error("HasCreateTable(drop only) = true, want false")
	}
	if len(SchemaStatements(dump, "wp_missing")) != 0 {
		t.Error("expected no statements for unknown table")
	}
}

func TestSegmentsRejoin(t *testing.T) {
	inputs := []string{
		"INSERT INTO `wp_options` VALUES (1,'a:1:{s:3:\\\"old\\\";}','yes')",
		`SELECT "x", 'y''z', 'unterminated`,
		"UPDATE t SET a='' -- it's\n WHERE b='1'",
		"",
	}
	for _, in := range inputs {
		var joined string
		for _, seg := range Segments(in) {
			joined += seg.Text
		}
		if joined != in {
			t.Errorf("joined segments = %q, want %q", joined, in)
		}
	}
}

func TestSegmentsLiterals(t *testing.T) {
	var lits []string
	for _, seg := range Segments(`INSERT INTO t VALUES ('a',"b\"c",'',3) -- 'not'`) {
		if seg.Literal {
			lits = append(lits, seg.Text)
		}
	}
	want := []string{"a", `b\"c`, ""}
	if !reflect.DeepEqual(lits, want) {
		t.Errorf("literals = %q, want %q", lits, want)
	}
}

func TestMapCode(t *testing.T) {
	in := "INSERT INTO wp_x VALUES ('wp_x')"
	got := MapCode(in, func(s string) string { return strings.ReplaceAll(s, "wp_", "new_") }, nil)
	want := "INSERT INTO new_x VALUES ('wp_x')"
	if got != want {
		t.Errorf("MapCode = %q, want %q", got, want)
	}
}
