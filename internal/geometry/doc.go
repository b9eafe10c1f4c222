// Package geometry converts regions between the normalized coordinate space used
// by the detector and tracker capabilities and the display coordinate space used
// by the presentation layer.
//
// # Coordinate System
//
// Normalized regions use the unit square:
//   - Origin (0, 0) at the top-left corner
//   - X increases rightward, Y increases downward
//   - A Rect is (X, Y) top-left plus (W, H) extent, all in [0, 1]
//
// Display regions use whatever units the presentation layer renders in (points,
// pixels). A DisplayTransform describes the target viewport and whether the
// capability reports Y bottom-up.
//
// # Malformed Input
//
// Nothing in this package fails. NaN and infinite components collapse to zero and
// out-of-range values are clamped into the unit square, so repeated conversions of
// the same input always produce the same output.
package geometry
