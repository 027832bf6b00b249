package service

import (
	"regexp"
	"strings"
)

// A marker is "Figure N", "Fig. N" or "图N" opening a line, optionally behind
// markdown emphasis or heading marks, with an optional half- or full-width
// colon. References inside a prompt body never split it.
var figureMarker = regexp.MustCompile(
	`(?im)^[ \t]*[*#]*[ \t]*(?:图|fig(?:ure)?\.?)[ \t]*\d+[ \t]*[:：]?`)

// ParseFigurePrompts splits raw prompt text into one prompt per figure, in
// order. Text before the first marker is preamble and is dropped.
func ParseFigurePrompts(text string) []string {
	segments := figureMarker.Split(text, -1)
	if len(segments) < 2 {
		return nil
	}

	prompts := make([]string, 0, len(segments)-1)
	for _, seg := range segments[1:] {
		seg = strings.Trim(seg, " \t\r\n*#")
		if seg != "" {
			prompts = append(prompts, seg)
		}
	}
	return prompts
}
