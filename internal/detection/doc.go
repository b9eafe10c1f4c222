// Package detection turns raw text-recognition output for one frame into a set
// of candidate numeric tokens, one best region per distinct value.
//
// # Pipeline
//
// Matching follows a fixed pipeline for every recognized line:
//
//  1. Token extraction: every maximal run of ASCII digits whose length falls in
//     [MinDigits, MaxDigits] becomes a token. Any other character separates runs,
//     so one line may yield several tokens.
//  2. Closed-world filtering: when an expected set is supplied, tokens outside it
//     are dropped.
//  3. Year suppression: in open-world mode, 4-digit tokens inside the configured
//     year range are dropped. Longer tokens that merely start with a year survive.
//  4. Region lookup: the token's byte range is resolved to a normalized region via
//     the candidate's RegionLookup. Tokens whose lookup fails are dropped.
//  5. De-duplication: when a value occurs more than once in the frame, the larger
//     region wins. Regions of near-equal area are broken in favor of the one
//     closest to that value's existing track center.
//
// # Purity
//
// Matcher holds only its Policy. Match has no side effects and depends only on
// its arguments, so the fusion engine can call it outside any lock.
package detection
