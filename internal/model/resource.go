package model

// Protocol selects the concurrency-control discipline a Resource enforces.
type Protocol string

const (
	ProtocolMutex Protocol = "mutex"
	ProtocolPIP   Protocol = "pip"
	ProtocolPCP   Protocol = "pcp"
)

// Resource is a shared entity bound to exactly one core. Requests from
// segments mapped elsewhere are rejected at validation time (spec §3).
type Resource struct {
	ID          string
	Name        string
	BoundCoreID string
	Protocol    Protocol

	// Ceiling is only meaningful for ProtocolPCP: the highest static
	// priority (or, under EDF, the minimum absolute deadline — see
	// spec §4.4 "priority domain unification") of any task that could
	// ever request this resource. Computed by the engine per job
	// release, not stored durably on the model.
}
