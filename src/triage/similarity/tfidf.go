package similarity

import (
	"math"
	"strings"
	"unicode"
)

// tokenize lowercases text and splits it into runs of letters, digits and
// underscores, dropping single-character tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_'
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// vector keeps terms in first-occurrence order so that identical documents
// produce bit-identical weights and scores.
type vector struct {
	terms   []string
	weights map[string]float64
}

// vectorize builds L2-normalised TF-IDF vectors for docs. The IDF is smoothed:
// idf(t) = ln((1+n)/(1+df(t))) + 1.
func vectorize(docs [][]string) []vector {
	n := float64(len(docs))
	df := make(map[string]int)
	vectors := make([]vector, len(docs))

	for i, doc := range docs {
		v := vector{weights: make(map[string]float64, len(doc))}
		for _, tok := range doc {
			if _, ok := v.weights[tok]; !ok {
				v.terms = append(v.terms, tok)
				df[tok]++
			}
			v.weights[tok]++
		}
		vectors[i] = v
	}

	for _, v := range vectors {
		var norm float64
		for _, tok := range v.terms {
			w := v.weights[tok] * (math.Log((1+n)/(1+float64(df[tok]))) + 1)
			v.weights[tok] = w
			norm += w * w
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		for _, tok := range v.terms {
			v.weights[tok] /= norm
		}
	}
	return vectors
}

func cosine(a, b vector) float64 {
	var dot float64
	for _, tok := range a.terms {
		dot += a.weights[tok] * b.weights[tok]
	}
	return dot
}
