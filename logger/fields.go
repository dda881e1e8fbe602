package logger

// Standard structured field names. Use these instead of string literals so
// log queries stay consistent across packages.
const (
	FieldRank        = "rank"
	FieldGroup       = "group"
	FieldMode        = "mode"
	FieldBus         = "bus"
	FieldBranch      = "branch"
	FieldCircuit     = "circuit"
	FieldKey         = "key"
	FieldContingency = "contingency"
	FieldStatus      = "status"
	FieldDim         = "dim"
	FieldRunID       = "run_id"
	FieldDurationMS  = "duration_ms"
	FieldError       = "error"
)
