// Package recovery extracts structured values from free-form model output.
// Every function here is total: a missing result is reported through the
// boolean return, never through a panic or an error.
package recovery

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

var (
	fenceMarker    = regexp.MustCompile("```[A-Za-z0-9_+-]*")
	bracketedChunk = regexp.MustCompile(`(?s)\[[^\]]*\]`)
)

// listParser is one stage of the list recovery chain.
type listParser struct {
	name  string
	parse func(text string) ([]any, bool)
}

// listParsers run in order and the first success wins.
var listParsers = []listParser{
	{name: "json", parse: parseJSONList},
	{name: "json-quotes", parse: parseQuoteNormalizedList},
	{name: "json5", parse: parseJSON5List},
	{name: "bracketed", parse: parseBracketedList},
}

// RecoverList returns the list of trimmed strings held in raw. raw may be
// an already decoded slice or model text containing a list literal wrapped
// in fences or prose.
func RecoverList(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		out := make([]string, len(v))
		for i, s := range v {
			out[i] = strings.TrimSpace(s)
		}
		return out, true
	case []any:
		return stringify(v), true
	case string:
		return recoverListText(v)
	default:
		return nil, false
	}
}

func recoverListText(raw string) ([]string, bool) {
	text := strings.TrimSpace(raw)
	if strings.Contains(text, "```") {
		text = strings.TrimSpace(fenceMarker.ReplaceAllString(text, ""))
	}

	if i := strings.IndexAny(text, "[{"); i >= 0 {
		text = strings.TrimSpace(text[i:])
	}
	if text == "" {
		return nil, false
	}

	for _, p := range listParsers {
		if items, ok := p.parse(text); ok {
			return stringify(items), true
		}
	}
	return nil, false
}

func parseJSONList(text string) ([]any, bool) {
	var items []any
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, false
	}
	return items, items != nil
}

func parseQuoteNormalizedList(text string) ([]any, bool) {
	if !strings.Contains(text, "'") {
		return nil, false
	}
	return parseJSONList(strings.ReplaceAll(text, "'", `"`))
}

func parseJSON5List(text string) ([]any, bool) {
	var items []any
	if err := json5.Unmarshal([]byte(text), &items); err != nil {
		return nil, false
	}
	return items, items != nil
}

func parseBracketedList(text string) ([]any, bool) {
	chunk := bracketedChunk.FindString(text)
	if chunk == "" {
		return nil, false
	}
	return parseJSONList(chunk)
}

func stringify(items []any) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = strings.TrimSpace(scalarString(item))
	}
	return out
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case nil:
		return "null"
	default:
		return fmt.Sprint(x)
	}
}
