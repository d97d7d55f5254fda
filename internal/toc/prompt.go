package toc

import "strings"

// SystemPrompt instructs the model to return only real chapters.
const SystemPrompt = `You are parsing the table of contents of a secondary school textbook.
Extract the chapter names, chapter numbers and chapter start page numbers.
ONLY extract the CHAPTERS. Do NOT extract the glossary, appendix, references, acknowledgements, index or preface.
Use the page number printed next to the chapter title. If the source omits chapter numbers, number the chapters sequentially from 1.

Respond with ONLY a JSON object of this shape, no other text:
{"chapters": [{"name": "Map work", "number": 1, "start_page": 1}]}`

// BuildPrompt wraps the raw table of contents text for the user turn.
func BuildPrompt(pageText string) string {
	var sb strings.Builder
	sb.WriteString("Table of contents:\n---\n")
	sb.WriteString(strings.TrimSpace(pageText))
	sb.WriteString("\n---")
	return sb.String()
}
