// Package analysis answers the two queries over a phonology.Matrix:
// which minimal feature sets single out a group of phonemes
// (FindMinimumFeatures), and which phonemes satisfy a conjunction of feature
// specifications (FindPhonemesByFeatures).
//
// FindMinimumFeatures first prunes the feature columns to the ones every
// target agrees on, then tests combinations of increasing size. The second
// phase is exponential in the number of surviving features; it is kept
// exhaustive because every tied minimal solution has to be reported.
package analysis
