// Package plate turns raw recognized text into a license-plate candidate.
//
// OCR output for a camera frame is noisy: it contains signage, partial reads
// and mis-segmented characters. This package tokenizes the text, cleans each
// token and scores how plausible it is as a plate number, returning the single
// best token per frame. Temporal smoothing across frames is not done here; see
// package stabilize.
//
// # Scoring
//
// A cleaned token is rejected (score 0) unless it has between 4 and 8 letters
// and digits and contains at least one of each. Accepted tokens start with a
// base score equal to that count and receive the bonus of the first matching
// layout:
//
//	ABC-1234 / ABC1234   +120
//	AB-1234  / AB1234    +110
//	AB12345              +95
//	4-10 letters/digits  +40
//
// A hyphen adds 6, and a hyphen that does not split the token into exactly
// two non-empty parts costs 10.
//
// # Normalization
//
// Two forms are used. Normalize keeps letters, digits and hyphens and upper-cases
// the result; it is what scoring sees. WireFormat additionally strips hyphens and
// is the only form ever sent to the parking backend.
package plate
