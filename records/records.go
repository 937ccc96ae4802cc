// Parsing of scontrol-style output: blank-line-delimited blocks of
// whitespace-separated Key=Value fields, one record per block.
//
// The field vocabulary is whatever the installed Slurm version emits, so a record
// preserves every field it sees and lookup of an absent field reports explicit
// absence rather than guessing.  Tokens without "=" (continuation fragments,
// free-text remnants) are skipped, they are not errors.

package records

import (
	"strconv"
	"strings"
)

// A Record holds the fields of one record.  Values may themselves contain "=";
// only the first "=" in a token separates key from value.
type Record map[string]string

// ParseBlocks returns one Record per well-formed block of text, in input order.
// Blocks that yield no fields at all are dropped.
func ParseBlocks(text string) []Record {
	blocks := strings.Split(text, "\n\n")
	rs := make([]Record, 0, len(blocks))
	for _, block := range blocks {
		if r := parseBlock(block); len(r) > 0 {
			rs = append(rs, r)
		}
	}
	return rs
}

func parseBlock(block string) Record {
	r := make(Record)
	for _, token := range strings.Fields(block) {
		key, value, found := strings.Cut(token, "=")
		if !found || key == "" {
			continue
		}
		r[key] = value
	}
	return r
}

// Get returns the field's value and whether the field is present at all.
func (r Record) Get(field string) (string, bool) {
	value, found := r[field]
	return value, found
}

// Field returns the field's value, or "" if the field is absent.
func (r Record) Field(field string) string {
	return r[field]
}

// Int interprets the field as a decimal integer.  A missing or non-numeric field
// reports false.
func (r Record) Int(field string) (int, bool) {
	value, found := r[field]
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Fields returns the number of fields in the record.
func (r Record) Fields() int {
	return len(r)
}
