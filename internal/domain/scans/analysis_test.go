package scans

import (
	"reflect"
	"testing"
)

func TestStaticAnalysisValidateEntropy(t *testing.T) {
	tests := []struct {
		name    string
		entropy EntropyData
		wantErr bool
	}{
		{"in_bounds", EntropyData{Overall: 7.2, Sections: []SectionEntropy{{Name: ".text", Entropy: 6.1}}}, false},
		{"overall_max", EntropyData{Overall: 8.0}, false},
		{"overall_too_high", EntropyData{Overall: 8.1}, true},
		{"overall_negative", EntropyData{Overall: -0.5}, true},
		{"section_too_high", EntropyData{Overall: 6.0, Sections: []SectionEntropy{{Name: ".rsrc", Entropy: 9.0}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sa := &StaticAnalysis{Entropy: tt.entropy}
			err := sa.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPackedSections(t *testing.T) {
	sa := &StaticAnalysis{Entropy: EntropyData{
		Overall: 7.2,
		Sections: []SectionEntropy{
			{Name: ".text", Entropy: 6.1},
			{Name: ".rsrc", Entropy: 7.9},
			{Name: ".packed", Entropy: 7.5}, // threshold is inclusive
			{Name: ".data", Entropy: 4.2},
		},
	}}

	got := sa.PackedSections()
	want := []string{".rsrc", ".packed"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PackedSections() = %v, want %v", got, want)
	}
}

func TestSummarizeCountsSuspiciousSignals(t *testing.T) {
	sa := &StaticAnalysis{
		Strings: []ExtractedString{
			{Value: "VirtualAllocEx", Type: StringSuspicious},
			{Value: "kernel32.dll", Type: StringNormal},
			{Value: "powershell -enc", Type: StringSuspicious},
			{Value: "https://example.com", Type: StringURL},
		},
		Imports: []ImportGroup{
			{DLL: "KERNEL32.dll", Suspicious: true},
			{DLL: "USER32.dll", Suspicious: false},
		},
		Entropy: EntropyData{Overall: 7.2, Sections: []SectionEntropy{{Name: ".rsrc", Entropy: 7.9}}},
	}
	da := &DynamicAnalysis{
		APICalls: []APICall{
			{API: "CreateRemoteThread", Suspicious: true},
			{API: "socket", Suspicious: false},
		},
		NetworkActivity: []NetworkEvent{{Type: NetDNS}, {Type: NetTCP}},
		Processes: []ProcessInfo{
			{Name: "cmd.exe", Suspicious: true},
			{Name: "explorer.exe", Suspicious: false},
		},
	}

	got := Summarize(sa, da)
	want := SignalSummary{
		SuspiciousStrings:   2,
		SuspiciousImports:   1,
		SuspiciousAPICalls:  1,
		SuspiciousProcesses: 1,
		NetworkEvents:       2,
		PackedSections:      []string{".rsrc"},
		OverallEntropy:      7.2,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}
}
