package prefix

import (
	"strings"
	"testing"

	"github.com/reign-theme/demo-install/internal/phpser"
	"github.com/reign-theme/demo-install/internal/sqldump"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		bare string
		want Detection
	}{
		{
			name: "create table exact",
			sql:  "DROP TABLE IF EXISTS `old_posts`;\nCREATE TABLE `old_posts` (ID int);",
			bare: "posts",
			want: Detection{Prefix: "old_", Source: SourceExact},
		},
		{
			name: "insert exact without backticks",
			sql:  "INSERT INTO demo_bp_groups VALUES (1);",
			bare: "bp_groups",
			want: Detection{Prefix: "demo_", Source: SourceExact},
		},
		{
			name: "truncate exact",
			sql:  "TRUNCATE TABLE `x1_links`;",
			bare: "links",
			want: Detection{Prefix: "x1_", Source: SourceExact},
		},
		{
			name: "first exact match wins",
			sql:  "ALTER TABLE `a_terms` DISABLE KEYS;\nINSERT INTO `b_terms` VALUES (1);",
			bare: "terms",
			want: Detection{Prefix: "a_", Source: SourceExact},
		},
		{
			name: "full table name falls back to core scan",
			sql:  "CREATE TABLE `old_postmeta` (meta_id int);",
			bare: "old_postmeta",
			want: Detection{Prefix: "old_", Source: SourceCoreScan},
		},
		{
			name: "core scan on other table",
			sql:  "INSERT INTO `site2_usermeta` VALUES (1,1,'k','v');",
			bare: "custom_table",
			want: Detection{Prefix: "site2_", Source: SourceCoreScan},
		},
		{
			name: "multisite style prefix",
			sql:  "INSERT INTO `wp_2_term_taxonomy` VALUES (1);",
			bare: "nothing",
			want: Detection{Prefix: "wp_2_", Source: SourceCoreScan},
		},
		{
			name: "names inside literals are ignored",
			sql:  "INSERT INTO `plain` VALUES ('INSERT INTO old_posts');",
			bare: "posts",
			want: Detection{Prefix: Default, Source: SourceDefault},
		},
		{
			name: "no signal",
			sql:  "SET NAMES utf8;",
			bare: "posts",
			want: Detection{Prefix: Default, Source: SourceDefault},
		},
		{
			name: "empty dump",
			sql:  "",
			bare: "posts",
			want: Detection{Prefix: Default, Source: SourceDefault},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.sql, tt.bare)
			if got != tt.want {
				t.Errorf("Detect = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name, prefix, wantPrefix, wantBare string
	}{
		{"old_posts", "old_", "old_", "posts"},
		{"posts", "old_", "", "posts"},
		{"old_", "old_", "", "old_"},
		{"wp_bp_groups", "wp_", "wp_", "bp_groups"},
	}
	for _, tt := range tests {
		p, bare := Split(tt.name, tt.prefix)
		if p != tt.wantPrefix || bare != tt.wantBare {
			t.Errorf("Split(%q, %q) = (%q, %q), want (%q, %q)", tt.name, tt.prefix, p, bare, tt.wantPrefix, tt.wantBare)
		}
	}
}

func TestRewriteVerbs(t *testing.T) {
	in := strings.Join([]string{
		"DROP TABLE IF EXISTS `old_posts`",
		"CREATE TABLE IF NOT EXISTS old_posts (ID int)",
		"INSERT IGNORE INTO `old_posts` VALUES (1)",
		"ALTER TABLE `old_posts` DISABLE KEYS",
		"TRUNCATE TABLE old_posts",
		"UPDATE old_posts SET a=1",
		"DELETE FROM `old_posts` WHERE 1",
		"SELECT * FROM old_posts JOIN old_postmeta ON 1",
		"LOCK TABLES `old_posts` WRITE",
	}, ";\n")
	want := strings.Join([]string{
		"DROP TABLE IF EXISTS `new_posts`",
		"CREATE TABLE IF NOT EXISTS new_posts (ID int)",
		"INSERT IGNORE INTO `new_posts` VALUES (1)",
		"ALTER TABLE `new_posts` DISABLE KEYS",
		"TRUNCATE TABLE new_posts",
		"UPDATE new_posts SET a=1",
		"DELETE FROM `new_posts` WHERE 1",
		"SELECT * FROM new_posts JOIN new_postmeta ON 1",
		"LOCK TABLES `new_posts` WRITE",
	}, ";\n")
	if got := Rewrite(in, "old_", "new_"); got != want {
		t.Errorf("Rewrite =\n%s\nwant\n%s", got, want)
	}
}

func TestRewriteLeavesLiteralTextAlone(t *testing.T) {
	in := "INSERT INTO `old_posts` VALUES (1,'see old_posts FROM old_users','`old_x`')"
	want := "INSERT INTO `new_posts` VALUES (1,'see old_posts FROM old_users','`old_x`')"
	if got := Rewrite(in, "old_", "new_"); got != want {
		t.Errorf("Rewrite = %q, want %q", got, want)
	}
}

func TestRewriteNoopWhenEqual(t *testing.T) {
	in := "INSERT INTO `wp_posts` VALUES (1,'s:8:\"wp_posts\";')"
	if got := Rewrite(in, "wp_", "wp_"); got != in {
		t.Errorf("Rewrite = %q, want unchanged", got)
	}
}

func TestRewriteRoundTrip(t *testing.T) {
	in := "DROP TABLE IF EXISTS `old_options`;\n" +
		"CREATE TABLE `old_options` (`option_id` bigint, `option_name` varchar(191));\n" +
		"INSERT INTO `old_options` VALUES (1,'widget_x','a:1:{i:0;s:11:\\\"old_options\\\";}','yes');\n" +
		"INSERT INTO old_comments SELECT * FROM `old_posts`;"

	forward := Rewrite(in, "old_", "new_")
	if forward == in {
		t.Fatal("forward rewrite changed nothing")
	}
	if back := Rewrite(forward, "new_", "old_"); back != in {
		t.Errorf("round trip =\n%s\nwant\n%s", back, in)
	}
}

func TestRewriteIsIdempotent(t *testing.T) {
	in := "INSERT INTO `old_posts` VALUES (1,'s:9:\"old_posts\";')"
	once := Rewrite(in, "old_", "new_")
	if twice := Rewrite(once, "old_", "new_"); twice != once {
		t.Errorf("second rewrite = %q, want %q", twice, once)
	}
}

func TestRewriteSerializedLength(t *testing.T) {
	got := RewriteSerialized(`s:7:"old_abc"`, "old_", "new2_")
	want := `s:8:"new2_abc"`
	if got != want {
		t.Fatalf("RewriteSerialized = %q, want %q", got, want)
	}

	v, err := phpser.Unserialize(got + ";")
	if err != nil {
		t.Fatalf("rewritten fragment does not decode: %v", err)
	}
	if v.Str != "new2_abc" || len(v.Str) != 8 {
		t.Errorf("decoded = %q", v.Str)
	}
}

func TestRewriteSerializedInsideDump(t *testing.T) {
	// Inside a SQL literal the quotes of a serialized value are escaped.
	stmt := `INSERT INTO ` + "`old_options`" + ` VALUES (7,'cron','a:2:{i:0;s:11:\"old_options\";i:1;s:13:\"old_usermeta2\";}','yes')`
	out := Rewrite(stmt, "old_", "wp_")

	ins, err := sqldump.ParseInsert(out)
	if err != nil {
		t.Fatalf("ParseInsert error: %v", err)
	}
	if ins.Table != "wp_options" {
		t.Errorf("Table = %q, want wp_options", ins.Table)
	}
	lit, _ := ins.Rows[0].Column(2)
	v, err := phpser.Unserialize(lit.Text)
	if err != nil {
		t.Fatalf("rewritten value does not decode: %v (%q)", err, lit.Text)
	}
	first, _ := v.Lookup("0")
	second, _ := v.Lookup("1")
	if first.Str != "wp_options" || second.Str != "wp_usermeta2" {
		t.Errorf("values = %q, %q", first.Str, second.Str)
	}
}

func TestRewriteFixesSerializedLengthsOnlyInsideLiterals(t *testing.T) {
	bare := `s:7:"old_abc"`
	if got := Rewrite(bare, "old_", "wp_"); got != bare {
		t.Errorf("Rewrite(bare) = %q, want unchanged", got)
	}
	if got, want := RewriteSerialized(bare, "old_", "wp_"), `s:6:"wp_abc"`; got != want {
		t.Errorf("RewriteSerialized(bare) = %q, want %q", got, want)
	}

	quoted := `SELECT 's:7:"old_abc"'`
	if got, want := Rewrite(quoted, "old_", "wp_"), `SELECT 's:6:"wp_abc"'`; got != want {
		t.Errorf("Rewrite(literal) = %q, want %q", got, want)
	}
}

func TestRewriteSerializedIgnoresPartialMatches(t *testing.T) {
	in := `s:12:"see old_posts"`
	if got := RewriteSerialized(in, "old_", "new_"); got != in {
		t.Errorf("RewriteSerialized = %q, want unchanged", got)
	}
}

func TestRewriteDollarInPrefix(t *testing.T) {
	got := Rewrite("INSERT INTO `old_posts` VALUES (1)", "old_", "n$1_")
	want := "INSERT INTO `n$1_posts` VALUES (1)"
	if got != want {
		t.Errorf("Rewrite = %q, want %q", got, want)
	}
}
