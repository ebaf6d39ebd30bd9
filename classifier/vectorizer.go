package classifier

import "sort"

// VocabularyCap bounds the feature space of one technique's vectorizer.
const VocabularyCap = 2000

// Vectorizer is a count-of-tokens transform with a capped vocabulary,
// fitted on the training documents of a single technique.
type Vectorizer struct {
	Vocabulary map[string]int `json:"vocabulary"` // token -> feature index
}

// FitVectorizer builds a vocabulary from tokenized documents. When the
// corpus exceeds the cap, the most frequent tokens win; ties break
// alphabetically so fits are deterministic.
func FitVectorizer(docs [][]string) *Vectorizer {
	counts := make(map[string]int)
	for _, doc := range docs {
		for _, tok := range doc {
			counts[tok]++
		}
	}

	tokens := make([]string, 0, len(counts))
	for tok := range counts {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if counts[tokens[i]] != counts[tokens[j]] {
			return counts[tokens[i]] > counts[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})
	if len(tokens) > VocabularyCap {
		tokens = tokens[:VocabularyCap]
	}
	sort.Strings(tokens)

	vocab := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		vocab[tok] = i
	}
	return &Vectorizer{Vocabulary: vocab}
}

// Transform maps one tokenized document onto the fitted feature space.
// Out-of-vocabulary tokens are ignored.
func (v *Vectorizer) Transform(doc []string) []float64 {
	features := make([]float64, len(v.Vocabulary))
	for _, tok := range doc {
		if idx, ok := v.Vocabulary[tok]; ok {
			features[idx]++
		}
	}
	return features
}

// TransformAll vectorizes a batch of documents in one pass.
func (v *Vectorizer) TransformAll(docs [][]string) [][]float64 {
	out := make([][]float64, len(docs))
	for i, doc := range docs {
		out[i] = v.Transform(doc)
	}
	return out
}
