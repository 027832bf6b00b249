package render

import (
	"regexp"
	"strings"
)

var (
	fencePattern      = regexp.MustCompile("```[a-zA-Z0-9_-]*")
	boldItalicPattern = regexp.MustCompile(`\*\*\*(.*?)\*\*\*`)
	boldPattern       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicPattern     = regexp.MustCompile(`\*([^*\n]+?)\*`)
	underBoldPattern  = regexp.MustCompile(`__(.*?)__`)
	headingPattern    = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	bulletPattern     = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	imagePattern      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	linkPattern       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	rulePattern       = regexp.MustCompile(`(?m)^[ \t]*[-*_]{3,}[ \t]*$`)
	blankRunPattern   = regexp.MustCompile(`\n{3,}`)
)

// CleanMarkdown strips Markdown markup so model output can go straight into a
// document. Ordered list numbers are kept.
func CleanMarkdown(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = fencePattern.ReplaceAllString(text, "")

	text = rulePattern.ReplaceAllString(text, "")
	text = boldItalicPattern.ReplaceAllString(text, "$1")
	text = boldPattern.ReplaceAllString(text, "$1")
	text = underBoldPattern.ReplaceAllString(text, "$1")
	text = headingPattern.ReplaceAllString(text, "")
	text = bulletPattern.ReplaceAllString(text, "")
	text = italicPattern.ReplaceAllString(text, "$1")

	// images before links: the link pattern would eat the image's brackets
	text = imagePattern.ReplaceAllString(text, "(Image: $1)")
	text = linkPattern.ReplaceAllString(text, "$1")

	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
