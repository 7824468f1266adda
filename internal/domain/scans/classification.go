package scans

import (
	"fmt"
	"sort"
)

// FamilyScore is one candidate family with its confidence in [0,1].
type FamilyScore struct {
	Family     string  `json:"family"`
	Confidence float64 `json:"confidence"`
}

// Classification is the classifier collaborator's verdict.
type Classification struct {
	Family              string        `json:"family,omitempty"`
	Confidence          float64       `json:"confidence"`
	AlternativeFamilies []FamilyScore `json:"alternative_families,omitempty"`
	Indicators          []string      `json:"indicators,omitempty"`
	Description         string        `json:"description,omitempty"`
}

// familyPriority is the fixed tie-break ordering over known families.
// Lower index wins a confidence tie; unknown families rank after all known
// ones and tie-break lexicographically. The table is policy, not domain
// truth, and deliberately lives in one place.
var familyPriority = map[string]int{
	"Ransomware":  0,
	"Trojan":      1,
	"Worm":        2,
	"Spyware":     3,
	"Adware":      4,
	"Rootkit":     5,
	"Backdoor":    6,
	"Keylogger":   7,
	"Cryptominer": 8,
	"Botnet":      9,
}

func familyRank(name string) int {
	if r, ok := familyPriority[name]; ok {
		return r
	}
	return len(familyPriority)
}

// scoreLess orders candidates by descending confidence, then by the fixed
// priority table, then by name. Total order, so sorting is reproducible.
func scoreLess(a, b FamilyScore) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	ra, rb := familyRank(a.Family), familyRank(b.Family)
	if ra != rb {
		return ra < rb
	}
	return a.Family < b.Family
}

// RankFamilies picks the primary family from a candidate set and returns
// the remaining candidates sorted by descending confidence. An empty
// candidate set means clean; primary is the zero value then.
func RankFamilies(candidates []FamilyScore) (FamilyScore, []FamilyScore) {
	if len(candidates) == 0 {
		return FamilyScore{}, nil
	}
	ranked := make([]FamilyScore, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool { return scoreLess(ranked[i], ranked[j]) })
	return ranked[0], ranked[1:]
}

// BandPolicy maps classifier confidence onto threat levels. Each field is
// the inclusive upper bound of its band; anything above High is critical.
// The edges are configurable policy rather than fixed domain truth.
type BandPolicy struct {
	Low    float64 `yaml:"low"`
	Medium float64 `yaml:"medium"`
	High   float64 `yaml:"high"`
}

// DefaultBandPolicy: (0,0.55] low, (0.55,0.75] medium, (0.75,0.90] high,
// (0.90,1] critical. Bands are upper-inclusive, so exactly 0.90 is high.
func DefaultBandPolicy() BandPolicy {
	return BandPolicy{Low: 0.55, Medium: 0.75, High: 0.90}
}

// ThreatLevel derives the severity bucket from a family and confidence.
// Deterministic and total over [0,1]; values outside that range are an
// aggregation error. No family or zero confidence means clean.
func (p BandPolicy) ThreatLevel(family string, confidence float64) (ThreatLevel, error) {
	if confidence < 0 || confidence > 1 {
		return "", fmt.Errorf("confidence %v outside [0,1]", confidence)
	}
	if family == "" || confidence == 0 {
		return ThreatClean, nil
	}
	switch {
	case confidence <= p.Low:
		return ThreatLow, nil
	case confidence <= p.Medium:
		return ThreatMedium, nil
	case confidence <= p.High:
		return ThreatHigh, nil
	default:
		return ThreatCritical, nil
	}
}
