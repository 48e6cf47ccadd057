package similarity

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// TFIDF is the lexical strategy: raw term counts weighted by smoothed inverse
// document frequency, fitted on both lists together, with L2-normalised rows.
type TFIDF struct{}

// NewTFIDF returns the lexical strategy.
func NewTFIDF() *TFIDF {
	return &TFIDF{}
}

func (t *TFIDF) Name() string { return MethodTFIDF }

type termWeight struct {
	term   int
	weight float64
}

// Matrix never fails; documents without usable terms score 0 against everything.
func (t *TFIDF) Matrix(_ context.Context, a, b []string) ([][]float64, error) {
	counts := make([]map[string]int, 0, len(a)+len(b))
	for _, text := range a {
		counts = append(counts, termCounts(text))
	}
	for _, text := range b {
		counts = append(counts, termCounts(text))
	}

	df := make(map[string]int)
	for _, doc := range counts {
		for term := range doc {
			df[term]++
		}
	}

	// Terms are indexed in sorted order so every sum runs in the same order.
	vocab := make([]string, 0, len(df))
	for term := range df {
		vocab = append(vocab, term)
	}
	sort.Strings(vocab)

	index := make(map[string]int, len(vocab))
	idf := make([]float64, len(vocab))
	n := float64(len(counts))
	for i, term := range vocab {
		index[term] = i
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	vectors := make([][]termWeight, len(counts))
	for d, doc := range counts {
		vec := make([]termWeight, 0, len(doc))
		for term, tf := range doc {
			i := index[term]
			vec = append(vec, termWeight{term: i, weight: float64(tf) * idf[i]})
		}
		sort.Slice(vec, func(x, y int) bool { return vec[x].term < vec[y].term })

		sum := 0.0
		for _, tw := range vec {
			sum += tw.weight * tw.weight
		}
		if sum > 0 {
			l2 := math.Sqrt(sum)
			for k := range vec {
				vec[k].weight /= l2
			}
		}
		vectors[d] = vec
	}

	rows := vectors[:len(a)]
	cols := vectors[len(a):]

	m := make([][]float64, len(rows))
	for i, row := range rows {
		m[i] = make([]float64, len(cols))
		for j, col := range cols {
			m[i][j] = clamp01(sparseDot(row, col))
		}
	}

	return m, nil
}

// sparseDot merges two term-sorted vectors.
func sparseDot(a, b []termWeight) float64 {
	sum := 0.0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].term == b[j].term:
			sum += a[i].weight * b[j].weight
			i++
			j++
		case a[i].term < b[j].term:
			i++
		default:
			j++
		}
	}
	return sum
}

func termCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, token := range Tokenize(text) {
		counts[token]++
	}
	return counts
}

// Tokenize lowercases and NFKC-normalises text, splits it into word tokens of at
// least two characters and drops English stopwords.
func Tokenize(text string) []string {
	text = strings.ToLower(norm.NFKC.String(text))
	raw := tokenPattern.FindAllString(text, -1)

	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}
