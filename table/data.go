package table

import (
	"strconv"
)

// Formatting helpers for common field types.

func FormatString(val string, _ PrintMods) string {
	return val
}

// FormatStringMax30 truncates long free-text values (job names, mostly) in fixed
// mode so one wide value does not blow up the whole column.
func FormatStringMax30(val string, ctx PrintMods) string {
	if (ctx&PrintModFixed) != 0 && len(val) > 30 {
		return val[:30]
	}
	return val
}

func FormatInt(val int, _ PrintMods) string {
	return strconv.Itoa(val)
}

func FormatInt64(val int64, _ PrintMods) string {
	return strconv.FormatInt(val, 10)
}

// FormatIntOrEmpty renders zero as "", for counts that are only interesting when
// present.
func FormatIntOrEmpty(val int, _ PrintMods) string {
	if val == 0 {
		return ""
	}
	return strconv.Itoa(val)
}

func FormatStrings(val []string, _ PrintMods) string {
	s := ""
	for i, x := range val {
		if i > 0 {
			s += ","
		}
		s += x
	}
	return s
}
