// Package diff slices unified diffs along file boundaries: into
// bounded-size chunks for generation calls, and into per-file sections for
// detailed analysis.
package diff

import (
	"regexp"
	"strings"
)

// fileMarker begins each file's section in a unified git diff.
const fileMarker = "diff --git "

var filePathPattern = regexp.MustCompile(`diff --git a/.* b/(.*)$`)

// Split partitions text into chunks of at most maxChunkSize bytes,
// cutting at file boundaries whenever possible. A single file section
// larger than maxChunkSize degrades to fixed-size byte windows for that
// section only; this loses hunk alignment but never fails. When the input
// already fits, the single returned chunk is the input unchanged.
func Split(text string, maxChunkSize int) []string {
	if maxChunkSize <= 0 || len(text) <= maxChunkSize {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, segment := range Segments(text) {
		if len(segment) > maxChunkSize {
			flush()
			for start := 0; start < len(segment); start += maxChunkSize {
				end := start + maxChunkSize
				if end > len(segment) {
					end = len(segment)
				}
				chunks = append(chunks, segment[start:end])
			}
			continue
		}
		if current.Len()+len(segment) > maxChunkSize {
			flush()
		}
		current.WriteString(segment)
	}
	flush()

	return chunks
}

// Segments tokenizes a diff at file-boundary markers. Concatenating the
// returned segments reproduces the input byte-for-byte; any content before
// the first marker becomes its own leading segment.
func Segments(text string) []string {
	if text == "" {
		return nil
	}

	var starts []int
	if strings.HasPrefix(text, fileMarker) {
		starts = append(starts, 0)
	}
	for offset := 0; ; {
		idx := strings.Index(text[offset:], "\n"+fileMarker)
		if idx < 0 {
			break
		}
		starts = append(starts, offset+idx+1)
		offset += idx + 1
	}

	if len(starts) == 0 {
		return []string{text}
	}

	var segments []string
	if starts[0] > 0 {
		segments = append(segments, text[:starts[0]])
	}
	for i, start := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		segments = append(segments, text[start:end])
	}

	return segments
}

// SplitByFile reconstructs each file's diff section keyed by its new-side
// path. Sections whose marker line does not parse are skipped.
func SplitByFile(text string) map[string]string {
	sections := make(map[string]string)

	var currentFile string
	var currentLines []string

	flush := func() {
		if currentFile != "" {
			sections[currentFile] = strings.Join(currentLines, "\n")
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, fileMarker) {
			flush()
			currentFile = ""
			currentLines = []string{line}
			if m := filePathPattern.FindStringSubmatch(line); m != nil {
				currentFile = m[1]
			}
			continue
		}
		if currentFile != "" {
			currentLines = append(currentLines, line)
		}
	}
	flush()

	return sections
}
