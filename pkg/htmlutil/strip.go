// Package htmlutil flattens the HTML fragments this tool moves around:
// book descriptions, highlight annotations, and EPUB spine documents.
package htmlutil

import (
	"html"
	"regexp"
	"strings"
)

// tagPattern matches HTML tags including self-closing tags.
var tagPattern = regexp.MustCompile(`<[^>]*>`)

// multipleSpacesPattern matches runs of whitespace within a line.
var multipleSpacesPattern = regexp.MustCompile(`\s{2,}`)

// blockReplacer turns closing block-level tags into newlines so paragraph
// structure survives the strip.
var blockReplacer = newBlockReplacer()

func newBlockReplacer() *strings.Replacer {
	blockTags := []string{
		"</p>", "</div>", "<br>", "<br/>", "<br />", "</li>",
		"</h1>", "</h2>", "</h3>", "</h4>", "</h5>", "</h6>",
	}
	pairs := make([]string, 0, len(blockTags)*4)
	for _, tag := range blockTags {
		pairs = append(pairs, tag, "\n", strings.ToUpper(tag), "\n")
	}
	return strings.NewReplacer(pairs...)
}

// StripTags removes all markup from a fragment and normalizes whitespace.
// Block-level tags become newlines; entities are decoded.
func StripTags(fragment string) string {
	if fragment == "" {
		return ""
	}

	result := blockReplacer.Replace(fragment)
	result = tagPattern.ReplaceAllString(result, "")
	result = html.UnescapeString(result)
	// Unescaping yields non-breaking spaces; treat them as plain spaces.
	result = strings.ReplaceAll(result, "\u00a0", " ")

	lines := strings.Split(result, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = multipleSpacesPattern.ReplaceAllString(line, " ")
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}

	return strings.Join(kept, "\n")
}

// WordCount counts the words left after stripping a fragment's markup.
func WordCount(fragment string) int {
	return len(strings.Fields(StripTags(fragment)))
}
