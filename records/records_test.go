package records

import (
	"testing"
)

const scontrolText = `JobId=101 JobName=train UserId=bob(1001) Priority=500
   JobState=RUNNING Reason=None Dependency=(null)
   Command=/home/bob/run.sh --lr=0.01

JobId=102 JobName=eval UserId=alice(1002)
   JobState=PENDING stray-token
   NodeList=(null)

this block has no fields at all
`

func TestParseBlocks(t *testing.T) {
	rs := ParseBlocks(scontrolText)
	if len(rs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(rs))
	}
	if v := rs[0].Field("JobId"); v != "101" {
		t.Fatalf("JobId %s", v)
	}
	if v := rs[1].Field("JobId"); v != "102" {
		t.Fatalf("JobId %s", v)
	}
	// Only the first "=" separates key from value.
	if v := rs[0].Field("Command"); v != "/home/bob/run.sh" {
		t.Fatalf("Command %s", v)
	}
	// Keys spanning lines of the same block all land in one record.
	if v := rs[0].Field("JobState"); v != "RUNNING" {
		t.Fatalf("JobState %s", v)
	}
}

func TestParseBlocksMalformedTokens(t *testing.T) {
	rs := ParseBlocks("JobId=7 nonsense =orphan JobState=PENDING")
	if len(rs) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(rs))
	}
	if rs[0].Fields() != 2 {
		t.Fatalf("Expected 2 fields, got %d", rs[0].Fields())
	}
	if _, found := rs[0].Get("nonsense"); found {
		t.Fatal("Malformed token should be skipped")
	}
}

func TestParseBlocksIdempotent(t *testing.T) {
	a := ParseBlocks(scontrolText)
	b := ParseBlocks(scontrolText)
	if len(a) != len(b) {
		t.Fatalf("Record counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Fields() != b[i].Fields() {
			t.Fatalf("Record %d differs in field count", i)
		}
		for k, v := range a[i] {
			if w := b[i].Field(k); w != v {
				t.Fatalf("Record %d field %s: %s vs %s", i, k, v, w)
			}
		}
	}
}

func TestRecordAccessors(t *testing.T) {
	rs := ParseBlocks("JobId=33 JobName=x NumCPUs=8 NumNodes=1-4")
	r := rs[0]
	if v, found := r.Get("JobId"); !found || v != "33" {
		t.Fatalf("Get %s %v", v, found)
	}
	if _, found := r.Get("NoSuchField"); found {
		t.Fatal("Absent field reported present")
	}
	if v := r.Field("NoSuchField"); v != "" {
		t.Fatalf("Field fallback %q", v)
	}
	if n, found := r.Int("NumCPUs"); !found || n != 8 {
		t.Fatalf("Int %d %v", n, found)
	}
	if _, found := r.Int("NumNodes"); found {
		t.Fatal("Range value parsed as int")
	}
	if _, found := r.Int("NoSuchField"); found {
		t.Fatal("Absent field parsed as int")
	}
}

func TestParseBlocksEmpty(t *testing.T) {
	if rs := ParseBlocks(""); len(rs) != 0 {
		t.Fatalf("Expected no records, got %d", len(rs))
	}
	if rs := ParseBlocks("\n\n\n\n"); len(rs) != 0 {
		t.Fatalf("Expected no records, got %d", len(rs))
	}
}
