// Package vision implements the single-object tracker with OpenCV template
// matching.
//
// Each handle keeps a grayscale template of its object. Track searches a
// window around the last known region with normalized cross-correlation and
// reports the best match; the score is the tracker confidence. The template is
// refreshed from high-confidence matches so slow appearance changes (lighting,
// perspective) are followed.
//
// Requires OpenCV 4 (gocv).
package vision
