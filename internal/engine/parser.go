package engine

import (
	"regexp"
	"strings"
)

var numberedItem = regexp.MustCompile(`^\d+[.)]\s*`)

// ParseEffectsList extracts effect texts from a model response formatted
// as a numbered list. Lines that are not numbered are kept verbatim, so a
// model that drops the numbering still yields usable effects. When max > 0
// the result is capped to the first max items.
func ParseEffectsList(text string, max int) []string {
	var effects []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if loc := numberedItem.FindString(line); loc != "" {
			line = strings.TrimSpace(strings.TrimPrefix(line, loc))
			if line == "" {
				continue
			}
		}
		effects = append(effects, line)
		if max > 0 && len(effects) == max {
			break
		}
	}
	return effects
}
