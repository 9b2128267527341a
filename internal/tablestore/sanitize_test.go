package tablestore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Reading List", "reading_list"},
		{"reading-list", "reading_list"},
		{"  Expenses  ", "expenses"},
		{"Q3 Sales (EU)", "q3_sales_eu"},
		{"2024 Budget", "_2024_budget"},
		{"Café Menu", "cafe_menu"},
		{"Ærø über", "r_uber"},
		{"a__b", "a_b"},
		{"___", ""},
		{"!!!", ""},
		{"", ""},
		{"Table", "table"},
		{"_2024_budget", "_2024_budget"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"Reading List", "2024 Budget", "Café", "__x__", "9", "ÀÉÎ õü",
		strings.Repeat("long name ", 20), "1" + strings.Repeat("a", 80),
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), in)
		if once != "" {
			assert.Regexp(t, validIdentifier, once, in)
		}
	}
}

func TestSanitize_Truncates(t *testing.T) {
	got := Sanitize(strings.Repeat("abc ", 40))
	assert.LessOrEqual(t, len(got), MaxIdentifierLength)
	assert.False(t, strings.HasSuffix(got, "_"))
}

func TestUniqueIdentifier(t *testing.T) {
	taken := map[string]bool{"books": true, "books_2": true}
	isTaken := func(s string) bool { return taken[s] }

	assert.Equal(t, "movies", uniqueIdentifier("movies", isTaken))
	assert.Equal(t, "books_3", uniqueIdentifier("books", isTaken))

	long := strings.Repeat("x", MaxIdentifierLength)
	got := uniqueIdentifier(long, func(s string) bool { return s == long })
	assert.Len(t, got, MaxIdentifierLength)
	assert.True(t, strings.HasSuffix(got, "_2"))
}

func TestTableIdentifier(t *testing.T) {
	taken := map[string]bool{"_catalog": true, "reading_list": true}

	assert.Equal(t, "reading_list_2", tableIdentifier("Reading List", taken))
	assert.Equal(t, "table", tableIdentifier("???", taken))
	assert.Equal(t, "_sqlite_stat1", tableIdentifier("sqlite_stat1", taken))
}

func TestQuoteIdent(t *testing.T) {
	q, err := quoteIdent("reading_list")
	require.NoError(t, err)
	assert.Equal(t, `"reading_list"`, q)

	for _, bad := range []string{"", "Bad", `x"; DROP TABLE _catalog; --`, "1abc", strings.Repeat("a", 65)} {
		_, err := quoteIdent(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseColumnType(t *testing.T) {
	tests := []struct {
		input    string
		expected ColumnType
	}{
		{"text", TypeText},
		{"", TypeText},
		{"string", TypeText},
		{"date", TypeText},
		{"count", TypeText},
		{"INT", TypeInteger},
		{"boolean", TypeInteger},
		{" Real ", TypeReal},
		{"money", TypeReal},
		{"decimal", TypeReal},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseColumnType(tt.input))
		})
	}
}

func TestParseColumnSpec(t *testing.T) {
	assert.Equal(t, ColumnSpec{Name: "price", Type: TypeReal}, ParseColumnSpec("price:real"))
	assert.Equal(t, ColumnSpec{Name: "title", Type: TypeText}, ParseColumnSpec(" title "))
	assert.Equal(t, ColumnSpec{Name: "qty", Type: TypeInteger}, ParseColumnSpec("qty : int"))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "Dune", FormatValue("Dune"))
	assert.Equal(t, "42", FormatValue(int64(42)))
	assert.Equal(t, "2.5", FormatValue(2.5))
	assert.Equal(t, "3", FormatValue(3.0))
}
