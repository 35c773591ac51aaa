package csvbootstrap

import (
	"fmt"
	"regexp"
	"strings"
)

// protectedColumns skip the boolean and numeric coercion branches so
// that leading zeros in identifier strings (e.g. StockId "007") survive
// the bulk import unchanged.
var protectedColumns = map[string]bool{
	"StockId":  true,
	"ItemCode": true,
}

// IsProtectedColumn reports whether col is a protected column.
func IsProtectedColumn(col string) bool {
	return protectedColumns[col]
}

var sanitiseRe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// SanitiseVarName turns a CSV header into a valid MySQL user-variable
// name.
func SanitiseVarName(csvColumn string, index int) string {
	clean := sanitiseRe.ReplaceAllString(csvColumn, "_")
	if clean == "" {
		clean = fmt.Sprintf("col%d", index)
	}
	return fmt.Sprintf("@c%d_%s", index, clean)
}

// sentinelDates are placeholder "no date" values some POS terminals
// write instead of leaving a date column NULL.
var sentinelDates = []string{"1899-12-30", "1900-01-01T00:00:00.000Z", "0000-00-00"}

var (
	isoDateTimeRe   = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}:[0-9]{2}:[0-9]{2}`)
	spaceDateTimeRe = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2} [0-9]{2}:[0-9]{2}:[0-9]{2}`)
	dateOnlyRe      = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}$`)
	integerRe       = regexp.MustCompile(`^-?[0-9]+$`)
	decimalRe       = regexp.MustCompile(`^-?[0-9]+\.[0-9]+$`)
	booleanWords     = []string{"true", "false", "yes", "no", "y", "n", "on", "off"}
	truthyWords      = map[string]bool{"true": true, "yes": true, "y": true, "on": true}
)

// BuildCoercionExpr builds the value-driven CASE expression assigning a
// table column from the user variable varName. The
// branches are value-driven SQL, evaluated once per row at LOAD DATA
// time, not in Go: the importer never reads the CSV's data rows itself.
func BuildCoercionExpr(varName string, protected bool) string {
	var b strings.Builder
	b.WriteString("CASE")
	fmt.Fprintf(&b, " WHEN %s IS NULL OR TRIM(%s) = '' THEN NULL", varName, varName)

	if !protected {
		quotedBools := make([]string, len(booleanWords))
		for i, w := range booleanWords {
			quotedBools[i] = "'" + w + "'"
		}
		fmt.Fprintf(&b, " WHEN LOWER(TRIM(%s)) IN (%s) THEN (%s)",
			varName, strings.Join(quotedBools, ","), buildBooleanCase(varName))
	}

	quotedSentinels := make([]string, len(sentinelDates))
	for i, d := range sentinelDates {
		quotedSentinels[i] = "'" + d + "'"
	}
	fmt.Fprintf(&b, " WHEN %s IN (%s) THEN NULL", varName, strings.Join(quotedSentinels, ","))

	fmt.Fprintf(&b, " WHEN %s REGEXP '%s' THEN STR_TO_DATE(SUBSTRING(%s,1,19), '%%Y-%%m-%%dT%%H:%%i:%%s')",
		varName, isoDateTimeRe.String(), varName)
	fmt.Fprintf(&b, " WHEN %s REGEXP '%s' THEN STR_TO_DATE(SUBSTRING(%s,1,19), '%%Y-%%m-%%d %%H:%%i:%%s')",
		varName, spaceDateTimeRe.String(), varName)
	fmt.Fprintf(&b, " WHEN %s REGEXP '%s' THEN STR_TO_DATE(%s, '%%Y-%%m-%%d')",
		varName, dateOnlyRe.String(), varName)

	if !protected {
		fmt.Fprintf(&b, " WHEN %s REGEXP '%s' THEN CAST(%s AS SIGNED)", varName, integerRe.String(), varName)
		fmt.Fprintf(&b, " WHEN %s REGEXP '%s' THEN CAST(%s AS DECIMAL(18,4))", varName, decimalRe.String(), varName)
	}

	fmt.Fprintf(&b, " ELSE TRIM(%s) END", varName)
	return b.String()
}

func buildBooleanCase(varName string) string {
	var b strings.Builder
	b.WriteString("CASE LOWER(TRIM(")
	b.WriteString(varName)
	b.WriteString("))")
	for _, w := range booleanWords {
		val := "0"
		if truthyWords[w] {
			val = "1"
		}
		fmt.Fprintf(&b, " WHEN '%s' THEN %s", w, val)
	}
	b.WriteString(" END")
	return b.String()
}

// BuildSetClause pairs one target column with its coercion expression.
func BuildSetClause(column, varName string) string {
	protected := IsProtectedColumn(column)
	return fmt.Sprintf("`%s` = %s", column, BuildCoercionExpr(varName, protected))
}
