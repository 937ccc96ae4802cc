// Slurm reports sets of node names in a compressed form: "c[1-3,7].fox,gpu-4"
// names c1.fox, c2.fox, c3.fox, c7.fox, and gpu-4.  Jobs reference their nodes
// this way, so attributing per-node resource use requires expanding the form into
// concrete host names.  Compression is the inverse and makes the node overview
// easier to read.
//
// The grammar handled here:
//
//   list     ::= pattern ("," pattern)*
//   pattern  ::= (literal | range)+
//   range    ::= "[" range-elt ("," range-elt)* "]"
//   range-elt ::= number | number "-" number
//
// In a range A-B, A must be no greater than B or the pattern is invalid.  A number
// with leading zeroes fixes the width of the expansion ("[01-10]" yields 01, 02,
// ..., 10).  Compression does not have a unique result and is not required to be
// optimal, but expanding its result must yield exactly the input set.

package hostlist

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Expand turns a compressed node list into the list of concrete host names, in
// pattern order.
func Expand(list string) ([]string, error) {
	patterns, err := split(list)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(patterns))
	for _, p := range patterns {
		expansion, err := expandPattern(p)
		if err != nil {
			return nil, err
		}
		names = append(names, expansion...)
	}
	return names, nil
}

// split separates the comma-joined patterns of a list, leaving commas inside
// brackets alone.
func split(s string) ([]string, error) {
	patterns := make([]string, 0)
	if s == "" {
		return patterns, nil
	}
	insideBrackets := false
	start := 0
	for ix, c := range s {
		switch c {
		case '[':
			if insideBrackets {
				return nil, fmt.Errorf("Illegal pattern: nested brackets in %s", s)
			}
			insideBrackets = true
		case ']':
			if !insideBrackets {
				return nil, fmt.Errorf("Illegal pattern: unmatched end bracket in %s", s)
			}
			insideBrackets = false
		case ',':
			if !insideBrackets {
				if ix == start {
					return nil, fmt.Errorf("Illegal pattern: empty host name in %s", s)
				}
				patterns = append(patterns, s[start:ix])
				start = ix + 1
			}
		}
	}
	if insideBrackets {
		return nil, fmt.Errorf("Illegal pattern: missing end bracket in %s", s)
	}
	if start == len(s) {
		return nil, fmt.Errorf("Illegal pattern: empty host name in %s", s)
	}
	return append(patterns, s[start:]), nil
}

func expandPattern(p string) ([]string, error) {
	i := strings.IndexByte(p, '[')
	if i < 0 {
		if strings.IndexByte(p, ']') >= 0 {
			return nil, fmt.Errorf("Illegal pattern: unmatched end bracket in %s", p)
		}
		return []string{p}, nil
	}
	j := strings.IndexByte(p[i:], ']')
	if j < 0 {
		return nil, fmt.Errorf("Illegal pattern: missing end bracket in %s", p)
	}
	j += i
	prefix := p[:i]
	tails, err := expandPattern(p[j+1:])
	if err != nil {
		return nil, err
	}
	names := make([]string, 0)
	for _, elt := range strings.Split(p[i+1:j], ",") {
		lo, hi, isRange := strings.Cut(elt, "-")
		a, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("Illegal pattern: bad range element %q in %s", elt, p)
		}
		b := a
		if isRange {
			b, err = strconv.Atoi(hi)
			if err != nil || b < a {
				return nil, fmt.Errorf("Illegal pattern: bad range element %q in %s", elt, p)
			}
		}
		for n := a; n <= b; n++ {
			num := strconv.Itoa(n)
			for len(num) < len(lo) {
				num = "0" + num
			}
			for _, t := range tails {
				names = append(names, prefix+num+t)
			}
		}
	}
	return names, nil
}

// Compress abbreviates a set of host names using range syntax where possible.  Only
// the rightmost digit string of each name is considered for compression; that is
// good enough in practice.  Zero-padded numbers compress separately from unpadded
// ones and keep their width, so "node001" stays "node001", never "node1".  The
// result is sorted for determinism, so compressing [y,x] and [x,y] yields the same
// list.

var withDigitsRe = regexp.MustCompile(`^(.*?)(\d+)(\D*)$`)

func Compress(hosts []string) []string {
	type shape struct {
		prefix, suffix string
		width          int
	}
	groups := make(map[shape][]int)
	result := make([]string, 0)
	for _, h := range hosts {
		ms := withDigitsRe.FindStringSubmatch(h)
		if ms == nil {
			result = append(result, h)
			continue
		}
		n, err := strconv.Atoi(ms[2])
		if err != nil {
			result = append(result, h)
			continue
		}
		// Width matters only when the number is actually padded.
		width := 0
		if len(ms[2]) > 1 && ms[2][0] == '0' {
			width = len(ms[2])
		}
		k := shape{ms[1], ms[3], width}
		groups[k] = append(groups[k], n)
	}
	for k, ns := range groups {
		if len(ns) == 1 {
			result = append(result, fmt.Sprintf("%s%0*d%s", k.prefix, k.width, ns[0], k.suffix))
			continue
		}
		result = append(result, k.prefix+compressRange(ns, k.width)+k.suffix)
	}
	sort.Strings(result)
	return result
}

func compressRange(xs []int, width int) string {
	sort.Ints(xs)
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < len(xs); {
		first := xs[i]
		prev := first
		i++
		for i < len(xs) && xs[i] == prev+1 {
			prev = xs[i]
			i++
		}
		if b.Len() > 1 {
			b.WriteByte(',')
		}
		if first != prev {
			fmt.Fprintf(&b, "%0*d-%0*d", width, first, width, prev)
		} else {
			fmt.Fprintf(&b, "%0*d", width, first)
		}
	}
	b.WriteByte(']')
	return b.String()
}
