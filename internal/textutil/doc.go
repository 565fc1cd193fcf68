// Package textutil provides text processing utilities for similarity checks,
// chunking, and filename sanitization.
//
// The primary use cases are:
//   - Detecting translations that merely echo their source text
//   - Splitting long text into provider-sized chunks for speech synthesis
//   - Sanitizing filenames for delivered artifacts
//
// Tokenization is Unicode-aware: text is case-folded and split on anything
// that is not a letter or digit.
package textutil
