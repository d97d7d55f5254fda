package chunker

import (
	"regexp"
	"strings"
)

var imageReferencePattern = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)

// RemoveLiterals deletes every exact occurrence of each noise string.
func RemoveLiterals(text string, noise []string) string {
	for _, n := range noise {
		if n == "" {
			continue
		}
		text = strings.ReplaceAll(text, n, "")
	}
	return text
}

// StripImageReferences deletes Markdown image references ![alt](target).
func StripImageReferences(text string) string {
	return imageReferencePattern.ReplaceAllString(text, "")
}

// StripNoise removes noise literals, then image references.
func StripNoise(text string, noise []string) string {
	return StripImageReferences(RemoveLiterals(text, noise))
}
