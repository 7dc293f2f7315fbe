package chunking

import "strings"

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

var separators = []string{"\n\n", "\n", ". ", " "}

// Splitter cuts text into rune windows of at most ChunkSize with Overlap runes
// shared between neighbours. A window ends at the last paragraph, line,
// sentence or word break in its second half when one exists.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/(s.ChunkSize-s.Overlap)+1)
	for start := 0; start < len(runes); {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.breakPoint(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// breakPoint never ends a window before start+Overlap+1, so the next window
// always begins inside this one.
func (s *Splitter) breakPoint(runes []rune, start, end int) int {
	floor := start + max(s.ChunkSize/2, s.Overlap+1)
	if floor >= end {
		return end
	}
	window := string(runes[floor:end])
	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		return floor + len([]rune(window[:idx+len(sep)]))
	}
	return end
}
