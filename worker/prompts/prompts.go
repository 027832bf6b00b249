// Package prompts builds the instructions sent to the generation backend.
package prompts

import (
	"fmt"
	"strings"
)

const outputConstraint = `

Output requirements:
1. Output only the finished text. Do not include reasoning, analysis or commentary.
2. Do not use Markdown markup such as bold markers, # headings, list bullets or code fences.
3. Write section headings as plain text on their own line.
4. The result must be ready to paste into a Word document.`

// Placeholder stands in for a style sample the user did not upload.
const Placeholder = "(no sample provided; follow standard patent drafting conventions)"

func BasicStructure(paper, sample string) string {
	return fmt.Sprintf(`Complete the following task:
1. Read and understand the paper below in detail.
2. Imitating the language and paragraph layout of the sample patent specification, write for this paper: the invention title (at most 25 characters), Technical Field, Background, Summary of the Invention, Beneficial Effects, and Description of Drawings (prefer processes that can be drawn as block diagrams). Do not write the detailed embodiments. Every formula must define each symbol it uses.

Start directly with the invention title on the first line.

[Paper]
%s

[Sample]
%s%s`, paper, orPlaceholder(sample), outputConstraint)
}

func Embodiments(partOne, terms, sample string) string {
	return fmt.Sprintf(`Using the sample specification and the first part of our specification below, write detailed embodiments for the invention. Keep terminology consistent with the glossary excerpt.

Output only the body of the detailed description of embodiments.

[Specification, first part]
%s

[Terminology]
%s

[Sample]
%s%s`, partOne, terms, orPlaceholder(sample), outputConstraint)
}

func Claims(spec, sample string) string {
	return fmt.Sprintf(`Following the sample claims, write the claims for the specification below.

Start directly with "1." and output only the numbered claims.

[Specification]
%s

[Sample claims]
%s%s`, spec, orPlaceholder(sample), outputConstraint)
}

func Abstract(spec, sample string) string {
	return fmt.Sprintf(`Following the sample abstract, write the abstract for the specification below.

Output a single paragraph of no more than 300 words, without a title.

[Specification]
%s

[Sample abstract]
%s%s`, spec, orPlaceholder(sample), outputConstraint)
}

// VisualPrompts asks for n drawing prompts, one per "Figure N:" marker.
func VisualPrompts(spec string, n int) string {
	return fmt.Sprintf(`Write drawing prompts for %d patent figures. Each figure is a clean black-and-white flowchart or block diagram, 4K, 16:9, with labels in the document's language.

Output each prompt in the form "Figure 1: ...", one figure after another, with no preamble.

[Specification]
%s%s`, n, spec, outputConstraint)
}

func Figure(prompt string) string {
	return "Draw a patent drawing: black lines on a white background, no colour, no shading, clear labels.\n\n" +
		strings.TrimSpace(prompt)
}

const Transcribe = `Transcribe all text on this page in reading order. Render formulas in plain text. Output only the transcription.`

func orPlaceholder(sample string) string {
	if strings.TrimSpace(sample) == "" {
		return Placeholder
	}
	return sample
}
