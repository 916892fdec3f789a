package types

// Severity is a coarse-grained risk level for a finding.
type Severity string

const (
	SevInfo Severity = "informational"
	SevLow  Severity = "low"
	SevMed  Severity = "medium"
	SevHigh Severity = "high"
)

// Finding describes a single issue reported by a scan plugin: which plugin
// raised it, where it applies, and how severe the plugin judged it.
type Finding struct {
	Plugin      string            `json:"plugin"`
	Target      string            `json:"target"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Severity    Severity          `json:"severity"`
	Confidence  float64           `json:"confidence,omitempty"`
	Evidence    string            `json:"evidence,omitempty"`
	Reference   string            `json:"reference,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}
