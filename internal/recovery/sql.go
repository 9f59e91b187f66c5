package recovery

import (
	"regexp"
	"strings"
)

var (
	sqlLabel   = regexp.MustCompile(`(?i)^(sql:|sql|query:)\s*`)
	sqlKeyword = regexp.MustCompile(`(?i)\b(SELECT|WITH|INSERT|UPDATE|DELETE)\b`)
)

// RecoverSQL returns the first SQL statement found in raw. Text before the
// leading keyword is dropped, as are closing fences and trailing comments.
func RecoverSQL(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	text = strings.TrimSpace(sqlLabel.ReplaceAllString(text, ""))

	loc := sqlKeyword.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	text = text[loc[0]:]

	if i := strings.Index(text, "```"); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(text), "`"))
	text = strings.TrimSpace(stripComment(text))

	if text == "" {
		return "", false
	}
	return text, true
}

// stripComment cuts text at the first "--" or "#" that is not inside a
// quoted literal or identifier.
func stripComment(text string) string {
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '#':
			return text[:i]
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			return text[:i]
		}
	}
	return text
}
