package inference

import (
	"strings"
	"text/template"

	"ragsql/internal/rag"
)

const delimiter = "$$$$$$$$$$$$$$$$$$$$$$$$$$$$$$$$"

// noLinkedSchema stands in for an empty schema-linking list.
const noLinkedSchema = "-- NONE FOUND --"

var schemaLinkingTemplate = template.Must(template.New("schema_linking").Parse(`
You are performing Schema Linking for a Text-to-SQL system.

Schema Linking = select ONLY the tables and columns from the schema that
are relevant to answering the question.

Directly output the relevant schema items. Here is the relevant information between the dotted $$$$$ lines.

{{.Delimiter}}

( Question below)
{{.Question}}

( Full Database Schema below)
{{.Schema}}

{{.Delimiter}}

IMPORTANT INFORMATION:
- Return ONLY a JSON list of strings. No other text or formatting.
- No markdown.
- No backticks.
- No explanations.
- Just the JSON list.

( Example below)
["table.column", "table.column"]

Return the list now:
`))

var sqlGenerationTemplate = template.Must(template.New("sql_generation").Parse(`
You are a professional Text-to-SQL model.
Your task is to convert natural language questions into SQL queries.

RULES:
- Use ONLY tables/columns appearing in the Schema Linking List.
- Use the RAG few-shot examples for guidance on SQL structure.
- Use the Full Schema only for table/column validation.
- Return ONLY the SQL query. No markdown. No explanation.

Here is the relevant information between the dotted $$$$$ lines.

{{.Delimiter}}

( Question below )
{{.Question}}

( Schema Linking List below )
{{.LinkedSchema}}

( Full Schema Reference below )
{{.Schema}}

( FEW SHOT EXAMPLES (RAG) below )
{{.FewShot}}

{{.Delimiter}}

NOW RETURN ONLY THE SQL QUERY:
`))

func render(t *template.Template, data any) string {
	var b strings.Builder
	// templates are static and data is plain strings
	if err := t.Execute(&b, data); err != nil {
		panic(err)
	}
	return b.String()
}

// SchemaLinkingPrompt asks for the "table.column" entries relevant to
// question.
func SchemaLinkingPrompt(question, schemaText string) string {
	return render(schemaLinkingTemplate, map[string]string{
		"Delimiter": delimiter,
		"Question":  question,
		"Schema":    schemaText,
	})
}

// SQLGenerationPrompt embeds the question, linked schema, full schema and
// few-shot examples of item.
func SQLGenerationPrompt(item *Item) string {
	linked := noLinkedSchema
	if len(item.LinkedSchema) > 0 {
		linked = strings.Join(item.LinkedSchema, "\n")
	}
	return render(sqlGenerationTemplate, map[string]string{
		"Delimiter":    delimiter,
		"Question":     item.Question,
		"LinkedSchema": linked,
		"Schema":       item.SchemaText,
		"FewShot":      FewShotBlock(item.Examples),
	})
}

// FewShotBlock renders retrieved examples separated by blank lines.
func FewShotBlock(examples []rag.Result) string {
	parts := make([]string, len(examples))
	for i, ex := range examples {
		parts[i] = "### Example\nQuestion: " + ex.Question + "\nSQL: " + ex.SQL
	}
	return strings.Join(parts, "\n\n")
}
