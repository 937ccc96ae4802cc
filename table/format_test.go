package table

import (
	"strings"
	"testing"
)

type row struct {
	name string
	n    int
}

var testFormatters = map[string]Formatter[row]{
	"name": {
		Fmt:  func(r row, ctx PrintMods) string { return FormatString(r.name, ctx) },
		Help: "the name",
	},
	"count": {
		Fmt:  func(r row, ctx PrintMods) string { return FormatInt(r.n, ctx) },
		Help: "the count",
	},
}

var testAliases = map[string][]string{
	"all": {"name", "count"},
}

var testData = []row{
	{"first", 10},
	{"a much longer name", 2},
}

func format(t *testing.T, spec string) string {
	fields, opts, err := ParseFormatSpec[row]("name,count", spec, testFormatters, testAliases)
	if err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	FormatData(&b, fields, testFormatters, opts, testData)
	return b.String()
}

func TestFormatFixed(t *testing.T) {
	got := format(t, "")
	want := `name                count
first               10
a much longer name  2
`
	if got != want {
		t.Fatalf("Fixed output:\n%q\nwant:\n%q", got, want)
	}
}

func TestFormatFixedNoHeader(t *testing.T) {
	got := format(t, "name,count,noheader")
	want := `first               10
a much longer name  2
`
	if got != want {
		t.Fatalf("Fixed output:\n%q\nwant:\n%q", got, want)
	}
}

func TestFormatCsv(t *testing.T) {
	// Csv has no header unless asked for.
	got := format(t, "name,count,csv")
	want := "first,10\na much longer name,2\n"
	if got != want {
		t.Fatalf("Csv output:\n%q\nwant:\n%q", got, want)
	}
	got = format(t, "name,count,csv,header")
	want = "name,count\n" + want
	if got != want {
		t.Fatalf("Csv output:\n%q\nwant:\n%q", got, want)
	}
}

func TestFormatJson(t *testing.T) {
	got := format(t, "name,count,json")
	want := `[{"name":"first","count":"10"},{"name":"a much longer name","count":"2"}]` + "\n"
	if got != want {
		t.Fatalf("Json output:\n%q\nwant:\n%q", got, want)
	}
}

func TestControlOnlySpecKeepsDefaults(t *testing.T) {
	// "-fmt csv" means the default fields in csv format.
	got := format(t, "csv")
	want := "first,10\na much longer name,2\n"
	if got != want {
		t.Fatalf("Csv output:\n%q\nwant:\n%q", got, want)
	}
}

func TestAliasExpansion(t *testing.T) {
	fields, _, err := ParseFormatSpec[row]("name", "all", testFormatters, testAliases)
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 2 || fields[0] != "name" || fields[1] != "count" {
		t.Fatalf("Fields %v", fields)
	}
}

func TestUnknownField(t *testing.T) {
	_, _, err := ParseFormatSpec[row]("name", "bogus", testFormatters, testAliases)
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("Expected an error naming the field, got %v", err)
	}
}

func TestEmptyData(t *testing.T) {
	fields, opts, err := ParseFormatSpec[row]("name,count", "", testFormatters, testAliases)
	if err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	FormatData(&b, fields, testFormatters, opts, nil)
	if got := b.String(); got != "name  count\n" {
		t.Fatalf("Header-only output %q", got)
	}
}

func TestFormatHelpers(t *testing.T) {
	long := strings.Repeat("x", 40)
	if s := FormatStringMax30(long, PrintModFixed); len(s) != 30 {
		t.Fatalf("Truncation: %d chars", len(s))
	}
	if s := FormatStringMax30(long, PrintModCsv); len(s) != 40 {
		t.Fatalf("Csv must not truncate: %d chars", len(s))
	}
	if s := FormatIntOrEmpty(0, PrintModFixed); s != "" {
		t.Fatalf("Zero: %q", s)
	}
	if s := FormatIntOrEmpty(7, PrintModFixed); s != "7" {
		t.Fatalf("Nonzero: %q", s)
	}
	if s := FormatStrings([]string{"a", "b"}, PrintModFixed); s != "a,b" {
		t.Fatalf("Strings: %q", s)
	}
	if s := FormatInt64(1 << 40, PrintModFixed); s != "1099511627776" {
		t.Fatalf("Int64: %q", s)
	}
}
