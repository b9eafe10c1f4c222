package ocr

import (
	"image"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ironsheep/numscan/internal/detection"
	"github.com/ironsheep/numscan/internal/geometry"
)

// Word is one recognized word with its pixel box and the line it belongs to.
type Word struct {
	Text       string          `json:"text"`
	Box        image.Rectangle `json:"box"`
	Confidence float64         `json:"confidence"` // 0.0 to 1.0

	// Layout position as reported by the engine.
	Block int `json:"block"`
	Para  int `json:"para"`
	Line  int `json:"line"`
	Index int `json:"index"`
}

// Line is a run of words on one text line, in reading order.
type Line struct {
	Words []Word
}

// Text joins the words with single spaces.
func (l Line) Text() string {
	parts := make([]string, len(l.Words))
	for i, w := range l.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// Confidence is the weakest word confidence on the line.
func (l Line) Confidence() float64 {
	if len(l.Words) == 0 {
		return 0
	}
	c := l.Words[0].Confidence
	for _, w := range l.Words[1:] {
		if w.Confidence < c {
			c = w.Confidence
		}
	}
	return c
}

type lineKey struct{ block, para, line int }

// GroupLines collects words into lines keyed by block, paragraph and line
// number. Empty words are dropped. Lines are returned in layout order.
func GroupLines(words []Word) []Line {
	byKey := make(map[lineKey][]Word)
	var keys []lineKey
	for _, w := range words {
		w.Text = strings.TrimSpace(w.Text)
		if w.Text == "" {
			continue
		}
		k := lineKey{w.Block, w.Para, w.Line}
		if _, ok := byKey[k]; !ok {
			keys = append(keys, k)
		}
		byKey[k] = append(byKey[k], w)
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.block != b.block {
			return a.block < b.block
		}
		if a.para != b.para {
			return a.para < b.para
		}
		return a.line < b.line
	})

	lines := make([]Line, 0, len(keys))
	for _, k := range keys {
		ws := byKey[k]
		sort.SliceStable(ws, func(i, j int) bool { return ws[i].Index < ws[j].Index })
		lines = append(lines, Line{Words: ws})
	}
	return lines
}

type wordSpan struct {
	start, end int // byte offsets into the line text
	text       string
	box        image.Rectangle
}

// LineLookup resolves byte ranges of a line's text to normalized regions.
//
// A range covering whole words maps to the union of their boxes. A range that
// starts or ends inside a word takes a horizontal slice of that word's box,
// proportional to rune position, which is how "SN1001" yields a box around
// the digits only.
type LineLookup struct {
	spans  []wordSpan
	bounds image.Rectangle
}

// NewLineLookup builds the lookup for line against the pixel bounds of the
// image the boxes were measured on.
func NewLineLookup(line Line, bounds image.Rectangle) *LineLookup {
	l := &LineLookup{bounds: bounds}
	offset := 0
	for i, w := range line.Words {
		if i > 0 {
			offset++ // separating space
		}
		l.spans = append(l.spans, wordSpan{
			start: offset,
			end:   offset + len(w.Text),
			text:  w.Text,
			box:   w.Box,
		})
		offset += len(w.Text)
	}
	return l
}

// RegionFor implements detection.RegionLookup.
func (l *LineLookup) RegionFor(start, end int) (geometry.Rect, bool) {
	if start < 0 || end <= start || l.bounds.Empty() {
		return geometry.Rect{}, false
	}

	var (
		union geometry.Rect
		found bool
	)
	for _, s := range l.spans {
		lo, hi := max(start, s.start), min(end, s.end)
		if lo >= hi {
			continue
		}
		part := geometry.FromPixels(sliceBox(s, lo-s.start, hi-s.start), l.bounds)
		if part.IsEmpty() {
			continue
		}
		if found {
			union = union.Union(part)
		} else {
			union, found = part, true
		}
	}
	if !found {
		return geometry.Rect{}, false
	}
	return union, true
}

// sliceBox cuts the horizontal part of a word box covering bytes [lo, hi) of
// the word.
func sliceBox(s wordSpan, lo, hi int) image.Rectangle {
	if !utf8.ValidString(s.text) {
		return image.Rectangle{}
	}
	total := utf8.RuneCountInString(s.text)
	if total == 0 {
		return image.Rectangle{}
	}
	r0 := utf8.RuneCountInString(s.text[:lo])
	r1 := utf8.RuneCountInString(s.text[:hi])
	w := s.box.Dx()
	x0 := s.box.Min.X + w*r0/total
	x1 := s.box.Min.X + (w*r1+total-1)/total
	return image.Rect(x0, s.box.Min.Y, x1, s.box.Max.Y)
}

// Candidates converts recognized words into detector candidates, one per line.
func Candidates(words []Word, bounds image.Rectangle) []detection.Candidate {
	lines := GroupLines(words)
	out := make([]detection.Candidate, 0, len(lines))
	for _, line := range lines {
		out = append(out, detection.Candidate{
			Text:       line.Text(),
			Confidence: line.Confidence(),
			Lookup:     NewLineLookup(line, bounds),
		})
	}
	return out
}
