// Package ocr provides the text detector backed by Tesseract.
//
// This package wraps the Tesseract OCR engine (via gosseract/v2). Frames are
// preprocessed, recognized at word level, and grouped into lines. Each line
// becomes a detection.Candidate whose region lookup maps any byte range of the
// line text back to a normalized region of the original frame.
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// # Thread Safety
//
// A TesseractDetector serializes recognition on its single client. GroupLines,
// Candidates and LineLookup are pure and safe for concurrent use.
package ocr
