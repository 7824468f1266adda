package scans

import "fmt"

// Entropy bounds the engine enforces on analyzer output. Byte-level Shannon
// entropy cannot exceed 8 bits; sections at or above the packed threshold
// are fed forward to classification as a packed/encrypted signal.
const (
	EntropyMax             = 8.0
	PackedEntropyThreshold = 7.5
)

// PEHeader metadata extracted by the static analyzer
type PEHeader struct {
	Machine            string   `json:"machine"`
	NumberOfSections   int      `json:"number_of_sections"`
	Timestamp          string   `json:"timestamp"`
	Characteristics    []string `json:"characteristics"`
	Subsystem          string   `json:"subsystem"`
	DLLCharacteristics []string `json:"dll_characteristics"`
	EntryPoint         string   `json:"entry_point"`
	ImageBase          string   `json:"image_base"`
	SectionAlignment   int      `json:"section_alignment"`
	FileAlignment      int      `json:"file_alignment"`
}

// StringType enum
type StringType string

const (
	StringURL        StringType = "url"
	StringIP         StringType = "ip"
	StringRegistry   StringType = "registry"
	StringFile       StringType = "file"
	StringSuspicious StringType = "suspicious"
	StringNormal     StringType = "normal"
)

type ExtractedString struct {
	Value  string     `json:"value"`
	Type   StringType `json:"type"`
	Offset string     `json:"offset"`
}

// ImportGroup is one DLL's imported functions; the group is flagged when
// any function belongs to a sensitive capability set.
type ImportGroup struct {
	DLL        string   `json:"dll"`
	Functions  []string `json:"functions"`
	Suspicious bool     `json:"suspicious"`
}

type SectionEntropy struct {
	Name        string  `json:"name"`
	Entropy     float64 `json:"entropy"`
	Size        int64   `json:"size"`
	VirtualSize int64   `json:"virtual_size"`
}

type EntropyData struct {
	Overall  float64          `json:"overall"`
	Sections []SectionEntropy `json:"sections"`
}

type OpcodeCount struct {
	Opcode string `json:"opcode"`
	Count  int    `json:"count"`
}

type OpcodeData struct {
	Histogram []OpcodeCount `json:"histogram"`
	Sequences []string      `json:"sequences"`
}

// StaticAnalysis value object, produced by the static analyzer collaborator
type StaticAnalysis struct {
	PEHeader PEHeader          `json:"pe_header"`
	Strings  []ExtractedString `json:"strings"`
	Imports  []ImportGroup     `json:"imports"`
	Entropy  EntropyData       `json:"entropy"`
	Opcodes  OpcodeData        `json:"opcodes"`
}

// Validate enforces the entropy contract on received analyzer output.
func (sa *StaticAnalysis) Validate() error {
	if sa.Entropy.Overall < 0 || sa.Entropy.Overall > EntropyMax {
		return fmt.Errorf("overall entropy %.2f outside [0, %.0f]", sa.Entropy.Overall, EntropyMax)
	}
	for _, sec := range sa.Entropy.Sections {
		if sec.Entropy < 0 || sec.Entropy > EntropyMax {
			return fmt.Errorf("section %s entropy %.2f outside [0, %.0f]", sec.Name, sec.Entropy, EntropyMax)
		}
	}
	return nil
}

// PackedSections returns names of sections whose entropy marks them as
// likely packed or encrypted.
func (sa *StaticAnalysis) PackedSections() []string {
	var out []string
	for _, sec := range sa.Entropy.Sections {
		if sec.Entropy >= PackedEntropyThreshold {
			out = append(out, sec.Name)
		}
	}
	return out
}

// NetworkEventType enum
type NetworkEventType string

const (
	NetDNS  NetworkEventType = "dns"
	NetHTTP NetworkEventType = "http"
	NetTCP  NetworkEventType = "tcp"
	NetUDP  NetworkEventType = "udp"
)

type APICall struct {
	Timestamp   string   `json:"timestamp"`
	API         string   `json:"api"`
	Module      string   `json:"module"`
	Arguments   []string `json:"arguments"`
	ReturnValue string   `json:"return_value"`
	Suspicious  bool     `json:"suspicious"`
}

type NetworkEvent struct {
	Timestamp   string           `json:"timestamp"`
	Type        NetworkEventType `json:"type"`
	Destination string           `json:"destination"`
	Port        int              `json:"port"`
	Data        string           `json:"data,omitempty"`
}

type FileOperation struct {
	Timestamp  string `json:"timestamp"`
	Operation  string `json:"operation"` // create | modify | delete | read
	Path       string `json:"path"`
	Suspicious bool   `json:"suspicious"`
}

type RegistryOperation struct {
	Timestamp  string `json:"timestamp"`
	Operation  string `json:"operation"` // create | modify | delete | query
	Key        string `json:"key"`
	Value      string `json:"value,omitempty"`
	Suspicious bool   `json:"suspicious"`
}

type ProcessInfo struct {
	PID         int    `json:"pid"`
	Name        string `json:"name"`
	ParentPID   int    `json:"parent_pid"`
	CommandLine string `json:"command_line"`
	Suspicious  bool   `json:"suspicious"`
}

// DynamicAnalysis value object, produced by the sandbox collaborator.
// Lists are ordered by capture timestamp.
type DynamicAnalysis struct {
	APICalls           []APICall           `json:"api_calls"`
	NetworkActivity    []NetworkEvent      `json:"network_activity"`
	FileOperations     []FileOperation     `json:"file_operations"`
	RegistryOperations []RegistryOperation `json:"registry_operations"`
	Processes          []ProcessInfo       `json:"processes"`
}

// SignalSummary is the combined signal surface handed to the classifier,
// derived deterministically from both phase outputs.
type SignalSummary struct {
	SuspiciousStrings   int      `json:"suspicious_strings"`
	SuspiciousImports   int      `json:"suspicious_imports"`
	SuspiciousAPICalls  int      `json:"suspicious_api_calls"`
	SuspiciousProcesses int      `json:"suspicious_processes"`
	NetworkEvents       int      `json:"network_events"`
	PackedSections      []string `json:"packed_sections,omitempty"`
	OverallEntropy      float64  `json:"overall_entropy"`
}

// Summarize merges static and dynamic output into the classifier's input
// features. The merge is a pure counting pass, so static/dynamic execution
// order can never affect it.
func Summarize(sa *StaticAnalysis, da *DynamicAnalysis) SignalSummary {
	sum := SignalSummary{
		OverallEntropy: sa.Entropy.Overall,
		PackedSections: sa.PackedSections(),
		NetworkEvents:  len(da.NetworkActivity),
	}
	for _, s := range sa.Strings {
		if s.Type == StringSuspicious {
			sum.SuspiciousStrings++
		}
	}
	for _, imp := range sa.Imports {
		if imp.Suspicious {
			sum.SuspiciousImports++
		}
	}
	for _, c := range da.APICalls {
		if c.Suspicious {
			sum.SuspiciousAPICalls++
		}
	}
	for _, p := range da.Processes {
		if p.Suspicious {
			sum.SuspiciousProcesses++
		}
	}
	return sum
}
