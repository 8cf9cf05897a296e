package usecase

import "strings"

// DefaultExtractionRules tell the model what to emit instead of guessing.
var DefaultExtractionRules = []string{
	"If you cannot determine the amount for a document DO NOT try to guess use 0",
	"If you cannot determine a date field for the document DO NOT try to guess use today's date",
	"If you cannot determine the value for any other property DO NOT try to guess use 'Unknown'",
	"Return ONLY a single-line, minified JSON object with no whitespace, no newlines, no indentation, and no additional text",
}

// BuildExtractionPrompt is a pure function of the schema text and rules.
func BuildExtractionPrompt(schema string, rules []string) string {
	var b strings.Builder
	b.WriteString("Analyze this bill/invoice PDF and extract information from each one.\n\n")
	b.WriteString("Return your response as a JSON object that conforms to this JSON schema:\n")
	b.WriteString(schema)
	b.WriteString("\n\nRules:")
	for _, rule := range rules {
		b.WriteString("\n- ")
		b.WriteString(rule)
	}
	return b.String()
}
