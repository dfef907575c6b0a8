package merge

import (
	"strings"

	"perapera/internal/document"
	"perapera/internal/textutil"
)

// DefaultThreshold is the similarity a prior block must exceed to donate its
// translation.
const DefaultThreshold = 0.85

// Stats summarizes one merge.
type Stats struct {
	Total   int
	Exact   int
	Similar int
}

// Matched returns the number of fresh units that received a translation.
func (s Stats) Matched() int { return s.Exact + s.Similar }

// Engine merges fresh extractions against previously saved documents.
type Engine struct {
	threshold float64
}

// New returns an Engine using threshold, or DefaultThreshold when threshold is
// outside (0, 1).
func New(threshold float64) *Engine {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return &Engine{threshold: threshold}
}

// Threshold returns the acceptance ratio in use.
func (e *Engine) Threshold() float64 { return e.threshold }

// Merge copies translations from existing into fresh and returns fresh. A nil
// existing document leaves fresh unchanged.
func (e *Engine) Merge(fresh, existing *document.AssetDocument) (*document.AssetDocument, Stats) {
	if fresh == nil || existing == nil {
		return fresh, Stats{}
	}
	if fresh.Title != "" && fresh.Title == existing.Title {
		fresh.TranslatedTitle = existing.TranslatedTitle
	}
	if fresh.IsMotion() {
		return fresh, e.mergeMotions(fresh.Motions, existing.Motions)
	}
	return fresh, e.mergeBlocks(fresh.Blocks, existing.Blocks)
}

func (e *Engine) mergeBlocks(fresh, prior []document.TextBlock) Stats {
	sources := make([]string, len(prior))
	for i := range prior {
		sources[i] = prior[i].SourceText
	}
	m := newMatcher(sources, e.threshold)
	stats := Stats{Total: len(fresh)}
	for i := range fresh {
		idx, exact, ok := m.match(fresh[i].SourceText)
		if !ok {
			continue
		}
		stats.record(exact)
		copyBlock(&fresh[i], &prior[idx])
	}
	return stats
}

func (e *Engine) mergeMotions(fresh, prior []document.MotionTextUnit) Stats {
	sources := make([]string, len(prior))
	for i := range prior {
		sources[i] = prior[i].SourceText
	}
	m := newMatcher(sources, e.threshold)
	stats := Stats{Total: len(fresh)}
	for i := range fresh {
		idx, exact, ok := m.match(fresh[i].SourceText)
		if !ok {
			continue
		}
		stats.record(exact)
		fresh[i].TranslatedText = prior[idx].TranslatedText
	}
	return stats
}

func (s *Stats) record(exact bool) {
	if exact {
		s.Exact++
	} else {
		s.Similar++
	}
}

// copyBlock copies translated text, speaker and choices positionally up to the
// shorter choice list.
func copyBlock(dst, src *document.TextBlock) {
	dst.TranslatedText = src.TranslatedText
	dst.TranslatedSpeakerName = src.TranslatedSpeakerName
	for i := range dst.Choices {
		if i >= len(src.Choices) {
			break
		}
		dst.Choices[i].TranslatedText = src.Choices[i].TranslatedText
	}
}

// matcher pairs a fresh source string with the best prior source string.
type matcher struct {
	sources   []string
	exact     map[string]int
	threshold float64
}

func newMatcher(sources []string, threshold float64) *matcher {
	exact := make(map[string]int, len(sources))
	for i, src := range sources {
		// later duplicates win
		if key := strings.TrimSpace(src); key != "" {
			exact[key] = i
		}
	}
	return &matcher{sources: sources, exact: exact, threshold: threshold}
}

// match returns the index of the accepted prior source, whether it came from
// the exact index, and whether any candidate was accepted.
func (m *matcher) match(source string) (int, bool, bool) {
	if source == "" || len(m.sources) == 0 {
		return 0, false, false
	}
	best, exact := -1, false
	if idx, ok := m.exact[strings.TrimSpace(source)]; ok {
		best, exact = idx, true
	} else {
		bestRatio := -1.0
		for i, candidate := range m.sources {
			if r := textutil.Ratio(source, candidate); r > bestRatio {
				best, bestRatio = i, r
			}
		}
	}
	if textutil.Ratio(source, m.sources[best]) > m.threshold {
		return best, exact, true
	}
	return 0, false, false
}
