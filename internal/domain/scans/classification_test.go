package scans

import (
	"reflect"
	"testing"
)

func TestBandPolicyThreatLevel(t *testing.T) {
	bands := DefaultBandPolicy()

	tests := []struct {
		name       string
		family     string
		confidence float64
		expected   ThreatLevel
	}{
		{"no_family", "", 0.8, ThreatClean},
		{"zero_confidence", "Trojan", 0.0, ThreatClean},
		{"just_above_zero", "Trojan", 0.01, ThreatLow},
		{"low_upper_edge", "Trojan", 0.55, ThreatLow},
		{"medium_lower", "Adware", 0.56, ThreatMedium},
		{"medium_upper_edge", "Adware", 0.75, ThreatMedium},
		{"high_lower", "Trojan", 0.76, ThreatHigh},
		{"high_near_upper", "Trojan", 0.8999999, ThreatHigh},
		{"high_upper_edge", "Trojan", 0.90, ThreatHigh},
		{"critical_lower", "Ransomware", 0.9000001, ThreatCritical},
		{"critical", "Ransomware", 0.94, ThreatCritical},
		{"critical_max", "Ransomware", 1.0, ThreatCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bands.ThreatLevel(tt.family, tt.confidence)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("ThreatLevel(%q, %v) = %s, want %s", tt.family, tt.confidence, got, tt.expected)
			}
		})
	}
}

func TestBandPolicyRejectsOutOfRange(t *testing.T) {
	bands := DefaultBandPolicy()
	for _, c := range []float64{-0.1, 1.1, 2} {
		if _, err := bands.ThreatLevel("Trojan", c); err == nil {
			t.Errorf("confidence %v: expected error, got none", c)
		}
	}
}

func TestRankFamiliesPrimaryByConfidence(t *testing.T) {
	primary, alts := RankFamilies([]FamilyScore{
		{Family: "Backdoor", Confidence: 0.45},
		{Family: "Ransomware", Confidence: 0.94},
		{Family: "Trojan", Confidence: 0.72},
	})

	if primary.Family != "Ransomware" || primary.Confidence != 0.94 {
		t.Fatalf("primary = %+v, want Ransomware/0.94", primary)
	}
	want := []FamilyScore{
		{Family: "Trojan", Confidence: 0.72},
		{Family: "Backdoor", Confidence: 0.45},
	}
	if !reflect.DeepEqual(alts, want) {
		t.Errorf("alternatives = %+v, want %+v", alts, want)
	}
}

func TestRankFamiliesTieBreakIsFixed(t *testing.T) {
	// Worm is ahead of Backdoor in the priority table, so a tie must
	// resolve to Worm no matter the input order.
	inputs := [][]FamilyScore{
		{{Family: "Backdoor", Confidence: 0.8}, {Family: "Worm", Confidence: 0.8}},
		{{Family: "Worm", Confidence: 0.8}, {Family: "Backdoor", Confidence: 0.8}},
	}
	for i, in := range inputs {
		primary, _ := RankFamilies(in)
		if primary.Family != "Worm" {
			t.Errorf("input %d: primary = %s, want Worm", i, primary.Family)
		}
	}
}

func TestRankFamiliesUnknownFamiliesAfterKnown(t *testing.T) {
	primary, _ := RankFamilies([]FamilyScore{
		{Family: "Zeusish", Confidence: 0.6},
		{Family: "Botnet", Confidence: 0.6},
	})
	if primary.Family != "Botnet" {
		t.Errorf("primary = %s, want Botnet (known family wins the tie)", primary.Family)
	}
}

func TestRankFamiliesEmptyMeansClean(t *testing.T) {
	primary, alts := RankFamilies(nil)
	if primary != (FamilyScore{}) || alts != nil {
		t.Errorf("expected zero primary and nil alternatives, got %+v / %+v", primary, alts)
	}
}

func TestRankFamiliesDeterministic(t *testing.T) {
	in := []FamilyScore{
		{Family: "Spyware", Confidence: 0.52},
		{Family: "Trojan", Confidence: 0.89},
		{Family: "Backdoor", Confidence: 0.65},
		{Family: "Keylogger", Confidence: 0.52},
	}
	firstPrimary, firstAlts := RankFamilies(in)
	for i := 0; i < 50; i++ {
		p, a := RankFamilies(in)
		if p != firstPrimary || !reflect.DeepEqual(a, firstAlts) {
			t.Fatalf("iteration %d: ranking changed: %+v / %+v", i, p, a)
		}
	}
}
