// Package tagging auto-labels photos against a fixed vocabulary using an
// external image/text embedding service.
package tagging

import "context"

// Oracle classifies an image against a candidate vocabulary. Implementations
// must only return labels drawn from the given vocabulary; the worker filters
// the result again as a belt check.
type Oracle interface {
	Classify(ctx context.Context, image []byte, vocabulary []string, threshold float64) ([]string, error)
}

// FilterToVocabulary drops labels not present in the vocabulary, preserving
// the order the oracle returned them in.
func FilterToVocabulary(labels, vocabulary []string) []string {
	allowed := make(map[string]bool, len(vocabulary))
	for _, v := range vocabulary {
		allowed[v] = true
	}
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if allowed[l] {
			out = append(out, l)
		}
	}
	return out
}
