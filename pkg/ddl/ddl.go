// Package ddl translates source-dialect DDL statements (the terminal
// database's SQL Server-family dialect) into the target MySQL dialect.
// Translate is a pure function: it never touches the network or a
// database handle, only string rewriting.
package ddl

import (
	"fmt"
	"regexp"
	"strings"
)

// Operation is the DDL operation tag carried on the wire alongside the
// source command string.
type Operation string

const (
	OpAlterTable Operation = "DDL_ALTER_TABLE"
	OpDropTable  Operation = "DDL_DROP_TABLE"
)

// Result is the outcome of translating one DDLOp.
type Result struct {
	// Statement is the target-dialect SQL to execute. Empty when Skipped.
	Statement string
	// Skipped is true for constructs that have no MySQL representation
	// (e.g. LOCK_ESCALATION) — translation succeeds but produces nothing
	// to execute.
	Skipped bool
}

var (
	schemaPrefixRe = regexp.MustCompile(`(?i)\[dbo\]\.`)
	bracketIdentRe = regexp.MustCompile(`\[([^\]]+)\]`)

	lockEscalationRe = regexp.MustCompile(`(?i)SET\s*\(\s*LOCK_ESCALATION\s*=`)
	dropColumnRe     = regexp.MustCompile(`(?i)^DROP\s+(?:COLUMN\s+)?\[?([A-Za-z0-9_]+)\]?\s*$`)
	alterColumnRe    = regexp.MustCompile(`(?i)\bALTER\s+COLUMN\b`)

	// ADD column patterns, tried in order: with length + nullability,
	// with length only, no length + nullability, bare. Named groups keep
	// the four shapes uniform for the caller.
	addColPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^Add\s+\[?(?P<col>[A-Za-z0-9_]+)\]?\s+\[?(?P<typ>[A-Za-z0-9_]+)\]?\s*\((?P<len>[^)]+)\)\s*(?P<null>NULL|NOT\s+NULL)\s*$`),
		regexp.MustCompile(`(?i)^Add\s+\[?(?P<col>[A-Za-z0-9_]+)\]?\s+\[?(?P<typ>[A-Za-z0-9_]+)\]?\s*\((?P<len>[^)]+)\)\s*$`),
		regexp.MustCompile(`(?i)^Add\s+\[?(?P<col>[A-Za-z0-9_]+)\]?\s+\[?(?P<typ>[A-Za-z0-9_]+)\]?\s*(?P<null>NULL|NOT\s+NULL)\s*$`),
		regexp.MustCompile(`(?i)^Add\s+\[?(?P<col>[A-Za-z0-9_]+)\]?\s+\[?(?P<typ>[A-Za-z0-9_]+)\]?\s*$`),
	}

	dataTypeReplacements = []struct {
		pattern *regexp.Regexp
		repl    string
	}{
		{regexp.MustCompile(`(?i)\bNVARCHAR\s*\(\s*MAX\s*\)`), "TEXT"},
		{regexp.MustCompile(`(?i)\bNVARCHAR\s*\(\s*(\d+)\s*\)`), "VARCHAR($1)"},
		{regexp.MustCompile(`(?i)\bNTEXT\b`), "TEXT"},
		{regexp.MustCompile(`(?i)\bBIT\b`), "BOOLEAN"},
		{regexp.MustCompile(`(?i)\bDATETIME2\b`), "DATETIME"},
		{regexp.MustCompile(`(?i)\bUNIQUEIDENTIFIER\b`), "VARCHAR(36)"},
		{regexp.MustCompile(`(?i)\bINT\s+IDENTITY\s*\(\s*1\s*,\s*1\s*\)`), "INT AUTO_INCREMENT"},
		{regexp.MustCompile(`(?i)\bBIGINT\s+IDENTITY\s*\(\s*1\s*,\s*1\s*\)`), "BIGINT AUTO_INCREMENT"},
		{regexp.MustCompile(`(?i)\bGETDATE\s*\(\s*\)`), "NOW()"},
		{regexp.MustCompile(`(?i)\bNEWID\s*\(\s*\)`), "UUID()"},
	}
)

// Translate converts one DDL statement. op selects the statement shape;
// the statement itself carries its own identifiers.
func Translate(op Operation, command string) (Result, error) {
	command = strings.TrimSpace(command)
	if lockEscalationRe.MatchString(command) {
		return Result{Skipped: true}, nil
	}

	switch op {
	case OpAlterTable:
		return translateAlterTable(command)
	case OpDropTable:
		return Result{Statement: rewriteCommon(command)}, nil
	default:
		return Result{Statement: rewriteCommon(command)}, nil
	}
}

// translateAlterTable matches DROP/ADD/ALTER COLUMN shapes against the
// clause in its original bracket-quoted form — bracketIdentRe has
// already turned every [Ident] into a backtick by the time rewriteCommon
// runs, so the structural regexes below must see the clause first.
func translateAlterTable(command string) (Result, error) {
	prefix := alterTablePrefix(rewriteCommon(command))
	clause := stripAlterTablePrefix(command)

	if m := dropColumnRe.FindStringSubmatch(clause); m != nil {
		return Result{Statement: fmt.Sprintf("%s DROP COLUMN `%s`", prefix, m[1])}, nil
	}
	if alterColumnRe.MatchString(clause) {
		rewritten := rewriteCommon(command)
		return Result{Statement: alterColumnRe.ReplaceAllString(rewritten, "MODIFY COLUMN")}, nil
	}
	if stmt, ok := translateAddColumn(prefix, clause); ok {
		return Result{Statement: stmt}, nil
	}
	// Unknown shape: identifier rewriting only, pass through.
	return Result{Statement: rewriteCommon(command)}, nil
}

// alterTablePrefix returns the "ALTER TABLE `x`" portion preceding the
// clause being rewritten, so DROP/ADD/MODIFY rewrites can be reassembled
// without losing the table reference.
func alterTablePrefix(stmt string) string {
	idx := strings.Index(strings.ToUpper(stmt), "ALTER TABLE")
	if idx == -1 {
		return ""
	}
	rest := stmt[idx:]
	fields := strings.Fields(rest)
	if len(fields) < 3 {
		return rest
	}
	return fields[0] + " " + fields[1] + " " + fields[2]
}

func stripAlterTablePrefix(stmt string) string {
	prefix := alterTablePrefix(stmt)
	if prefix == "" {
		return stmt
	}
	idx := strings.Index(stmt, prefix)
	return strings.TrimSpace(stmt[idx+len(prefix):])
}

// translateAddColumn tries each addColPatterns shape against clause in
// turn. The four patterns carry different named groups (len and null are
// both optional across the SQL Server ADD-column shapes observed on the
// wire), so the match is read back by name rather than by fixed index.
func translateAddColumn(prefix, clause string) (string, bool) {
	for _, re := range addColPatterns {
		m := re.FindStringSubmatch(clause)
		if m == nil {
			continue
		}
		groups := namedGroups(re, m)

		typ := groups["typ"]
		if l := groups["len"]; l != "" {
			typ = fmt.Sprintf("%s(%s)", typ, l)
		}
		typ = normalizeType(typ)

		var b strings.Builder
		fmt.Fprintf(&b, "%s ADD COLUMN `%s` %s", prefix, groups["col"], typ)
		b.WriteString(" CHARACTER SET utf8mb4 COLLATE utf8mb4_0900_ai_ci")
		if null := groups["null"]; null != "" {
			b.WriteString(" ")
			b.WriteString(strings.ToUpper(strings.Join(strings.Fields(null), " ")))
		}
		return b.String(), true
	}
	return "", false
}

// namedGroups maps a regexp's named capture groups to their matched text
// for one FindStringSubmatch result. Groups absent from a particular
// pattern are simply absent from the map.
func namedGroups(re *regexp.Regexp, m []string) map[string]string {
	out := make(map[string]string, len(m))
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		out[name] = m[i]
	}
	return out
}

// rewriteCommon applies the dialect rewrites shared by every operation:
// schema-prefix stripping, data-type mapping, identifier quoting.
func rewriteCommon(s string) string {
	s = schemaPrefixRe.ReplaceAllString(s, "")
	s = normalizeType(s)
	s = bracketIdentRe.ReplaceAllString(s, "`$1`")
	return s
}

// normalizeType applies the source-to-target data type substitutions in
// isolation, for callers that already hold an extracted type token
// rather than a full statement.
func normalizeType(s string) string {
	for _, r := range dataTypeReplacements {
		s = r.pattern.ReplaceAllString(s, r.repl)
	}
	return s
}
