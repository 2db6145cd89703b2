package motorola

import (
	"math"
	"strconv"
	"strings"
)

// Numeric cells arrive with stray whitespace and occasionally a unit suffix
// ("567.0 MHz", "5120 Ksym/sec"). These helpers take the first token and
// fail soft to zero: a malformed cell must not sink the whole table.

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func isInt(s string) bool {
	_, err := strconv.Atoi(firstToken(s))
	return err == nil
}

func parseInt(s string) int {
	v, _ := strconv.Atoi(firstToken(s))
	return v
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(firstToken(s), 10, 64)
	return v
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(firstToken(s), 64)
	return v
}

func megahertzToHz(s string) int64 {
	return int64(math.Round(parseFloat(s) * 1_000_000))
}
