package textutil

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// Match is the closest existing text found by NearestMatch.
type Match struct {
	Index int
	Score float64
}

// NearestMatch compares candidate against every entry in existing using
// IDF-weighted fingerprints built over the combined set. It returns Index -1
// when nothing shares a token with the candidate.
func NearestMatch(candidate string, existing []string) Match {
	best := Match{Index: -1}
	target := NewFingerprint(candidate)
	if target == nil || len(existing) == 0 {
		return best
	}
	corpus := NewCorpus()
	corpus.Add(target)
	prints := make([]*Fingerprint, len(existing))
	for i, text := range existing {
		prints[i] = NewFingerprint(text)
		corpus.Add(prints[i])
	}
	idf := corpus.IDF()
	weighted := target.WithIDF(idf)
	for i, fp := range prints {
		score := CosineSimilarity(weighted, fp.WithIDF(idf))
		if score > best.Score {
			best = Match{Index: i, Score: score}
		}
	}
	return best
}
