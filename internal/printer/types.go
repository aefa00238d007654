// Package printer contains shared types to avoid import cycles.
package printer

// ToolSummary describes the SumatraPDF installation for health checks
type ToolSummary struct {
	Status    string `json:"status"` // "ok", "warning", "error"
	Path      string `json:"path"`
	Found     bool   `json:"found"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	Error     string `json:"error,omitempty"`
}

// GateStatus reports how many SumatraPDF processes are running against the limit
type GateStatus struct {
	Capacity  int `json:"capacity"`
	InFlight  int `json:"in_flight"`
	Available int `json:"available"`
}

// Request is the JSON payload of a "print" message
type Request struct {
	Printer        string `json:"printer,omitempty"`
	File           string `json:"file"`
	Copies         *uint  `json:"copies,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}
