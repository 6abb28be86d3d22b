package engine

import (
	"regexp"
	"strings"
)

// fencedBlock matches one fenced code block: an opening fence with an
// optional language tag, a newline, then the shortest stretch of anything
// up to a closing fence.
var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z0-9+]*\n(.*?)```")

// Extract pulls file content out of a model reply. Markdown targets take
// the whole reply verbatim; every other target takes the longest fenced
// code block, first one winning ties. ok is false when the reply carries
// no block at all, which feedback sessions read as the model's signal that
// the file needs no further edits.
func Extract(filename, reply string) (content string, ok bool) {
	if strings.HasSuffix(filename, ".md") {
		return strings.TrimSpace(reply), true
	}

	matches := fencedBlock.FindAllStringSubmatch(reply, -1)
	if len(matches) == 0 {
		return "", false
	}
	longest := matches[0][1]
	for _, m := range matches[1:] {
		if len(m[1]) > len(longest) {
			longest = m[1]
		}
	}
	return strings.TrimSpace(longest), true
}
