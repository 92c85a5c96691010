package chunk

import "strings"

// Split breaks text into ordered chunks per Params. It is deterministic:
// the same (text, params) always yields the same chunk sequence.
func Split(text string, p Params) []Chunk {
	if p.TargetSize <= 0 {
		p.TargetSize = 800
	}
	if p.MinSize < 0 {
		p.MinSize = 0
	}

	pieces := recursiveSplit(text, separatorsFor(p.ContentType), p.TargetSize)
	pieces = mergeSmall(pieces, p.TargetSize, p.MinSize)
	texts := applyOverlap(pieces, p.Overlap)

	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Text: t, Ordinal: i, Total: len(texts)}
	}
	return chunks
}

// recursiveSplit tries separators in order; the first one that appears in
// text is used to split it into pieces, each recursively re-split against
// the remaining (finer) separators if still over budget. With no separator
// left, it falls back to a hard rune-count cut so the budget is always met.
func recursiveSplit(text string, separators []string, targetSize int) []string {
	if len([]rune(text)) <= targetSize {
		return []string{text}
	}

	for i, sep := range separators {
		if !strings.Contains(text, sep) {
			continue
		}
		parts := splitKeepingSeparator(text, sep)
		var out []string
		for _, part := range parts {
			if part == "" {
				continue
			}
			if len([]rune(part)) > targetSize {
				out = append(out, recursiveSplit(part, separators[i+1:], targetSize)...)
			} else {
				out = append(out, part)
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	return hardSplit(text, targetSize)
}

// splitKeepingSeparator splits on sep, reattaching sep to the end of every
// piece but the last so downstream concatenation reconstructs the original
// text (needed for e.g. ". " so sentence enders survive in the chunk).
func splitKeepingSeparator(text, sep string) []string {
	raw := strings.Split(text, sep)
	if len(raw) == 1 {
		return raw
	}
	out := make([]string, len(raw))
	for i, part := range raw {
		if i < len(raw)-1 {
			out[i] = part + sep
		} else {
			out[i] = part
		}
	}
	return out
}

func hardSplit(text string, targetSize int) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += targetSize {
		end := i + targetSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// mergeSmall greedily recombines adjacent pieces up to targetSize, so a run
// of small fragments (short lines, list items) doesn't produce one chunk
// per fragment. A final piece shorter than minSize is then folded into its
// predecessor, so the last chunk may exceed targetSize by up to minSize; a
// short chunk survives only when it is the sole chunk.
func mergeSmall(pieces []string, targetSize, minSize int) []string {
	if len(pieces) == 0 {
		return nil
	}

	var merged []string
	current := pieces[0]
	for _, p := range pieces[1:] {
		combinedLen := len([]rune(current)) + len([]rune(p))
		if combinedLen <= targetSize {
			current += p
			continue
		}
		merged = append(merged, current)
		current = p
	}
	merged = append(merged, current)

	// Fold a too-small final chunk into its predecessor rather than
	// emitting a fragment below minSize, unless it's the only chunk.
	if len(merged) > 1 && minSize > 0 {
		last := merged[len(merged)-1]
		if len([]rune(last)) < minSize {
			prev := merged[len(merged)-2]
			if len([]rune(prev))+len([]rune(last)) <= targetSize*2 {
				merged = merged[:len(merged)-2]
				merged = append(merged, prev+last)
			}
		}
	}

	return merged
}

// applyOverlap prepends the trailing `overlap` runes of each chunk to the
// next one, so adjacent chunks share configured context.
func applyOverlap(pieces []string, overlap int) []string {
	if overlap <= 0 || len(pieces) < 2 {
		return pieces
	}

	out := make([]string, len(pieces))
	out[0] = pieces[0]
	for i := 1; i < len(pieces); i++ {
		prevRunes := []rune(pieces[i-1])
		start := len(prevRunes) - overlap
		if start < 0 {
			start = 0
		}
		out[i] = string(prevRunes[start:]) + pieces[i]
	}
	return out
}
