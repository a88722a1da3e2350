// Package corrections is the feedback store of human-confirmed category
// corrections. A lightweight deterministic embedding plus cosine similarity
// lets recurring descriptions inherit their corrected category without any
// external model call.
package corrections

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// EmbeddingDim is the fixed size of correction embeddings.
const EmbeddingDim = 256

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText lowercases, strips accents and collapses whitespace so that
// "Suscripción SPOTIFY" and "suscripcion spotify" embed identically.
func NormalizeText(s string) string {
	if folded, _, err := transform.String(deaccent, s); err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Embed computes a deterministic bag-of-trigrams embedding: each character
// trigram of the normalized text is hashed into one of EmbeddingDim buckets
// and the resulting histogram is L2-normalized. Identical descriptions embed
// identically on every run and every host.
func Embed(text string) []float32 {
	v := make([]float32, EmbeddingDim)
	t := NormalizeText(text)
	if t == "" {
		return v
	}
	padded := "  " + t + "  "
	for i := 0; i+3 <= len(padded); i++ {
		h := fnv.New32a()
		h.Write([]byte(padded[i : i+3]))
		v[h.Sum32()%EmbeddingDim]++
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// Cosine returns the cosine similarity of two equal-length vectors.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
