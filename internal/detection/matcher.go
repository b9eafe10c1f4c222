package detection

import (
	"math"
	"sort"

	"github.com/ironsheep/numscan/internal/config"
	"github.com/ironsheep/numscan/internal/geometry"
)

// RegionLookup resolves a byte range of a candidate's text to a normalized region.
type RegionLookup interface {
	RegionFor(start, end int) (geometry.Rect, bool)
}

// LookupFunc adapts a function to RegionLookup.
type LookupFunc func(start, end int) (geometry.Rect, bool)

// RegionFor calls f.
func (f LookupFunc) RegionFor(start, end int) (geometry.Rect, bool) {
	return f(start, end)
}

// Candidate is one recognized line from the detector.
type Candidate struct {
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Lookup     RegionLookup `json:"-"`
}

// Policy holds the matcher's inclusion rules.
type Policy struct {
	MinDigits int
	MaxDigits int

	// RejectYears drops 4-digit tokens in [YearMin, YearMax] in open-world mode.
	RejectYears bool
	YearMin     int
	YearMax     int

	// TieFraction is the relative area difference under which two duplicate
	// regions are considered tied and proximity to the prior track decides.
	TieFraction float64

	// MinConfidence skips whole candidates below this recognition confidence.
	MinConfidence float64
}

// DefaultPolicy returns the policy built from the config defaults.
func DefaultPolicy() Policy {
	return PolicyFromTuning(config.EmptyTuningConfig())
}

// PolicyFromTuning builds a Policy from a loaded TuningConfig.
func PolicyFromTuning(cfg *config.TuningConfig) Policy {
	return Policy{
		MinDigits:     cfg.GetMinDigits(),
		MaxDigits:     cfg.GetMaxDigits(),
		RejectYears:   cfg.GetRejectYears(),
		YearMin:       cfg.GetYearMin(),
		YearMax:       cfg.GetYearMax(),
		TieFraction:   cfg.GetDuplicateTieFraction(),
		MinConfidence: cfg.GetMinDetectionConfidence(),
	}
}

// Match is the chosen occurrence of one value in a frame.
type Match struct {
	Value      string        `json:"value"`
	Region     geometry.Rect `json:"region"`
	Confidence float64       `json:"confidence"`

	// Candidate is the index of the source candidate in the detector output.
	Candidate int `json:"candidate"`
}

// Matcher applies a Policy to detector output.
type Matcher struct {
	policy Policy
}

// NewMatcher creates a Matcher.
func NewMatcher(policy Policy) *Matcher {
	return &Matcher{policy: policy}
}

// Policy returns the matcher's policy.
func (m *Matcher) Policy() Policy {
	return m.policy
}

// Match returns the chosen region for every value accepted in this frame.
//
// Parameters:
//   - candidates: detector output in detector order.
//   - expected: target values; empty means open-world.
//   - priorCenters: centers of existing tracks keyed by value, used only to break
//     ties between duplicate occurrences. May be nil.
func (m *Matcher) Match(candidates []Candidate, expected map[string]struct{}, priorCenters map[string]geometry.Point) map[string]geometry.Rect {
	matches := m.MatchDetailed(candidates, expected, priorCenters)
	out := make(map[string]geometry.Rect, len(matches))
	for _, mt := range matches {
		out[mt.Value] = mt.Region
	}
	return out
}

// MatchDetailed is Match with confidence and provenance, sorted by value.
func (m *Matcher) MatchDetailed(candidates []Candidate, expected map[string]struct{}, priorCenters map[string]geometry.Point) []Match {
	best := make(map[string]Match)

	for ci, cand := range candidates {
		if cand.Confidence < m.policy.MinConfidence || cand.Lookup == nil {
			continue
		}
		for _, tok := range ExtractTokens(cand.Text, m.policy.MinDigits, m.policy.MaxDigits) {
			if !m.accepts(tok.Value, expected) {
				continue
			}

			region, ok := cand.Lookup.RegionFor(tok.Start, tok.End)
			if !ok {
				continue
			}
			region = region.Clamp()
			if region.IsEmpty() {
				continue
			}

			next := Match{Value: tok.Value, Region: region, Confidence: cand.Confidence, Candidate: ci}
			prev, seen := best[tok.Value]
			if !seen {
				best[tok.Value] = next
				continue
			}
			center, hasPrior := priorCenters[tok.Value]
			if m.prefer(next.Region, prev.Region, center, hasPrior) {
				best[tok.Value] = next
			}
		}
	}

	out := make([]Match, 0, len(best))
	for _, mt := range best {
		out = append(out, mt)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Value < out[j].Value
	})
	return out
}

func (m *Matcher) accepts(value string, expected map[string]struct{}) bool {
	if len(expected) > 0 {
		_, ok := expected[value]
		return ok
	}
	if m.policy.RejectYears && IsYearLike(value, m.policy.YearMin, m.policy.YearMax) {
		return false
	}
	return true
}

// prefer reports whether candidate should replace current.
func (m *Matcher) prefer(candidate, current geometry.Rect, prior geometry.Point, hasPrior bool) bool {
	a := candidate.Area()
	b := current.Area()
	largest := math.Max(a, b)

	if hasPrior && largest > 0 && math.Abs(a-b) <= m.policy.TieFraction*largest {
		return candidate.Center().Distance(prior) < current.Center().Distance(prior)
	}
	return a > b
}
