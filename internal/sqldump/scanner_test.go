package sqldump

import (
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "semicolon inside single quotes",
			in:   "INSERT INTO t VALUES (1,'a;b');",
			want: []string{"INSERT INTO t VALUES (1,'a;b')"},
		},
		{
			name: "semicolon inside double quotes",
			in:   `INSERT INTO t VALUES (1,"a;b"); SELECT 1;`,
			want: []string{`INSERT INTO t VALUES (1,"a;b")`, "SELECT 1"},
		},
		{
			name: "escaped quote does not close literal",
			in:   `INSERT INTO t VALUES ('it\'s; fine'); DELETE FROM t;`,
			want: []string{`INSERT INTO t VALUES ('it\'s; fine')`, "DELETE FROM t"},
		},
		{
			name: "doubled quote stays inside literal",
			in:   "INSERT INTO t VALUES ('it''s;ok');SELECT 2",
			want: []string{"INSERT INTO t VALUES ('it''s;ok')", "SELECT 2"},
		},
		{
			name: "escaped backslash before closing quote",
			in:   `INSERT INTO t VALUES ('C:\\');SELECT 3;`,
			want: []string{`INSERT INTO t VALUES ('C:\\')`, "SELECT 3"},
		},
		{
			name: "trailing fragment without terminator",
			in:   "SELECT 1;\n  SELECT 2  ",
			want: []string{"SELECT 1", "SELECT 2"},
		},
		{
			name: "empty statements dropped",
			in:   " ;; \n;SELECT 1;;",
			want: []string{"SELECT 1"},
		},
		{
			name: "comments dropped and quotes in comments ignored",
			in: "-- Dumping data for table `wp_posts`; it's here\n" +
				"# another comment with ' quote\n" +
				"/* block; comment's */\n" +
				"INSERT INTO t VALUES (1);\n" +
				"-- trailing comment\n",
			want: []string{"INSERT INTO t VALUES (1)"},
		},
		{
			name: "executable comments kept",
			in:   "/*!40101 SET NAMES utf8mb4 */;\nLOCK TABLES `t` WRITE;",
			want: []string{"/*!40101 SET NAMES utf8mb4 */", "LOCK TABLES `t` WRITE"},
		},
		{
			name: "double dash without space is not a comment",
			in:   "SELECT 1--1;SELECT 2;",
			want: []string{"SELECT 1--1", "SELECT 2"},
		},
		{
			name: "semicolon inside backticks",
			in:   "CREATE TABLE `odd;name` (id int);",
			want: []string{"CREATE TABLE `odd;name` (id int)"},
		},
		{
			name: "empty input",
			in:   "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestScannerIsLazyAndSingleUse(t *testing.T) {
	sc := NewScanner("SELECT 1; SELECT 2;")
	if !sc.Next() || sc.Statement() != "SELECT 1" {
		t.Fatalf("first statement = %q", sc.Statement())
	}
	if !sc.Next() || sc.Statement() != "SELECT 2" {
		t.Fatalf("second statement = %q", sc.Statement())
	}
	if sc.Next() {
		t.Errorf("unexpected third statement %q", sc.Statement())
	}
	if sc.Next() {
		t.Error("scanner restarted after exhaustion")
	}
}

func TestSplitUnterminatedQuoteSwallowsRest(t *testing.T) {
	got := Split("INSERT INTO t VALUES ('broken); SELECT 2;")
	if len(got) != 1 {
		t.Errorf("Split = %q, want one statement", got)
	}
}
