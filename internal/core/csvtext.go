package core

// csvtext.go holds the field escaper and the tokenizer for the journal CSV
// format. The two are exact inverses: Tokenize recovers every string that
// EscapeField produced, including embedded quotes, commas and newlines.
// CR characters inside values come back as LF, since line endings are
// normalized before tokenizing.

import "strings"

// formulaTriggers are leading characters a spreadsheet treats as a formula.
const formulaTriggers = "=+-@"

// needsFormulaGuard reports whether s would be guarded on export. Values that
// already look guarded (apostrophes followed by a trigger) are guarded again
// so that the guard can always be removed unambiguously.
func needsFormulaGuard(s string) bool {
	rest := strings.TrimLeft(s, "'")
	return rest != "" && strings.IndexByte(formulaTriggers, rest[0]) >= 0
}

// EscapeField renders one CSV field.
//
// A value starting with =, +, - or @ is prefixed with an apostrophe, as is a
// value that is already apostrophes followed by one of those, so UnguardField
// can always restore the original. The
// result is wrapped in double quotes when it is empty or contains a quote,
// comma, CR or LF; embedded quotes are doubled.
func EscapeField(value string) string {
	if needsFormulaGuard(value) {
		value = "'" + value
	}

	quote := value == ""
	var b strings.Builder
	b.Grow(len(value) + 2)
	for _, r := range value {
		switch r {
		case '"':
			b.WriteString(`""`)
			quote = true
		case ',', '\n', '\r':
			b.WriteRune(r)
			quote = true
		default:
			b.WriteRune(r)
		}
	}

	if quote {
		return `"` + b.String() + `"`
	}
	return b.String()
}

// UnguardField reverses the formula-injection guard applied by EscapeField.
func UnguardField(value string) string {
	if strings.HasPrefix(value, "'") && needsFormulaGuard(value[1:]) {
		return value[1:]
	}
	return value
}

// JoinRow escapes and comma-joins fields into a single line without terminator.
func JoinRow(fields []string) string {
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = EscapeField(f)
	}
	return strings.Join(escaped, ",")
}

// Tokenize splits CSV text into rows of fields.
//
// Line endings are normalized (CRLF and lone CR become LF) first. The scanner
// is a two-state machine, inside or outside quotes, with one character of
// lookahead to recognize doubled quotes. A final row without a trailing
// newline is still returned; a trailing newline does not produce an empty row.
func Tokenize(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var (
		rows         [][]string
		row          []string
		field        strings.Builder
		insideQuotes bool
	)

	endField := func() {
		row = append(row, field.String())
		field.Reset()
	}
	endRow := func() {
		endField()
		rows = append(rows, row)
		row = nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"' && !insideQuotes:
			insideQuotes = true
		case c == '"' && i+1 < len(text) && text[i+1] == '"':
			field.WriteByte('"')
			i++
		case c == '"':
			insideQuotes = false
		case c == ',' && !insideQuotes:
			endField()
		case c == '\n' && !insideQuotes:
			endRow()
		default:
			field.WriteByte(c)
		}
	}

	if field.Len() > 0 || len(row) > 0 {
		endRow()
	}

	return rows
}

// isBlankRow reports whether a tokenized row came from an empty line.
func isBlankRow(row []string) bool {
	return len(row) == 1 && row[0] == ""
}
