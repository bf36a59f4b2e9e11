package model

// ResolutionSource records how a company identity was resolved.
type ResolutionSource string

const (
	ResolutionManualMap ResolutionSource = "manual_map"
	ResolutionProvider  ResolutionSource = "provider"
	ResolutionHeuristic ResolutionSource = "heuristic"
)

// ResolvedIdentity maps a user-supplied symbol or company name to a canonical
// ticker. Created once at enqueue time and immutable thereafter.
type ResolvedIdentity struct {
	RequestedSymbol  string           `json:"requestedSymbol"`
	CanonicalSymbol  string           `json:"canonicalSymbol"`
	CompanyName      string           `json:"companyName"`
	Aliases          []string         `json:"aliases,omitempty"`
	Exchange         string           `json:"exchange,omitempty"`
	Confidence       float64          `json:"confidence"`
	ResolutionSource ResolutionSource `json:"resolutionSource"`
}
