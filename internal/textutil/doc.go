// Package textutil provides text processing helpers shared by the workers,
// the approval gateway and the CLI.
//
// The primary use cases are:
//   - Token fingerprints and cosine similarity for near-duplicate topic detection
//   - URL slugs for published posts
//   - Human-readable stage labels and rune-safe previews
//
// Tokenization folds case, strips combining marks (Latin accents and Hebrew
// niqqud) and splits on anything that is not a letter or digit, so Hebrew and
// English titles fingerprint the same way.
package textutil
