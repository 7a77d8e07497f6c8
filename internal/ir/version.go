package ir

// Version constants for the IR and engine.
const (
	// IRVersion is the IR schema version recorded with exported runs.
	IRVersion = "1"

	// EngineVersion is the GAP engine version.
	EngineVersion = "0.1.0"
)
