package prompt

import (
	"encoding/json"

	domain "github.com/haliard/binsight/internal/domain/scans"
)

// GetSystemPrompt returns the system prompt for malware family
// classification. The model must answer with strict JSON only.
func GetSystemPrompt() string {
	return `You are a malware classification engine. You receive the static and
dynamic analysis of one binary sample plus a derived signal summary.
Respond with a single JSON object and nothing else, using this schema:
{
  "family": "<primary malware family or empty string if benign>",
  "confidence": <float 0.0-1.0, 0.0 if benign>,
  "alternative_families": [{"family": "<name>", "confidence": <float>}],
  "indicators": ["<human-readable behavioral indicator>"],
  "description": "<one paragraph summary>"
}
Known families: Ransomware, Trojan, Worm, Spyware, Adware, Rootkit,
Backdoor, Keylogger, Cryptominer, Botnet. Sections flagged as packed in the
signal summary are a strong packing/encryption signal and should bias the
verdict accordingly. If the sample shows no malicious behavior, return an
empty family and confidence 0.0.`
}

// GetUserPrompt serializes the aggregated signal surface for the model.
func GetUserPrompt(sa *domain.StaticAnalysis, da *domain.DynamicAnalysis, sig domain.SignalSummary) (string, error) {
	payload := struct {
		Signals domain.SignalSummary    `json:"signals"`
		Static  *domain.StaticAnalysis  `json:"static_analysis"`
		Dynamic *domain.DynamicAnalysis `json:"dynamic_analysis"`
	}{sig, sa, da}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
