package store

import "math"

// normalizeVectorInPlace normalizes a vector to unit length in place.
// Zero vectors are left untouched.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// cosineSimilarity computes the cosine similarity between two vectors of
// equal length. Range [-1,1]; zero vectors yield 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// distanceToScore converts a cosine distance (0-2) to a similarity score (0-1).
func distanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}

// similarityToScore maps cosine similarity [-1,1] to a score in [0,1].
func similarityToScore(sim float64) float32 {
	return float32((sim + 1.0) / 2.0)
}
