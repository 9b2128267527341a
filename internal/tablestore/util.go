package tablestore

import (
	"strconv"

	"golang.org/x/text/cases"
)

// equalFold compares names under full Unicode case folding.
// A Caser is stateful, so each call builds its own.
func equalFold(a, b string) bool {
	if a == b {
		return true
	}
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
