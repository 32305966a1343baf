package domain

// DocumentState is the lifecycle state of a Document.
type DocumentState string

const (
	// StateExtracted is the initial state: document and articles persisted.
	StateExtracted DocumentState = "extracted"
	// StateProcessed means all articles are validated against the declared count.
	StateProcessed DocumentState = "processed"
	// StateVectorized is the terminal state for a fully indexed document.
	StateVectorized DocumentState = "vectorized"
	// StateError is the side state reached from any stage on unrecoverable failure.
	StateError DocumentState = "error"
)

// Stage identifies a pipeline stage acting on a document.
type Stage string

const (
	// StageExtract produces StateExtracted.
	StageExtract Stage = "extract"
	// StageProcess produces StateProcessed.
	StageProcess Stage = "process"
	// StageVectorize produces StateVectorized.
	StageVectorize Stage = "vectorize"
)

// rank orders forward states for idempotence checks. Error has no rank.
var stateRank = map[DocumentState]int{
	StateExtracted:  1,
	StateProcessed:  2,
	StateVectorized: 3,
}

// Produces returns the state a stage yields on success.
func (s Stage) Produces() DocumentState {
	switch s {
	case StageExtract:
		return StateExtracted
	case StageProcess:
		return StateProcessed
	case StageVectorize:
		return StateVectorized
	}
	return ""
}

// AtOrPast reports whether the state is already at or beyond target.
// Used to make re-run stages a no-op success: external stages are retried
// by their own callers without coordination.
func (s DocumentState) AtOrPast(target DocumentState) bool {
	sr, ok := stateRank[s]
	if !ok {
		return false
	}
	tr, ok := stateRank[target]
	if !ok {
		return false
	}
	return sr >= tr
}

// CanTransition reports whether the forward transition from → to is legal.
// The error state is reachable from any forward state; recovery from error
// re-runs the failed stage rather than following this table.
func CanTransition(from, to DocumentState) bool {
	if to == StateError {
		_, ok := stateRank[from]
		return ok
	}
	switch from {
	case StateExtracted:
		return to == StateProcessed
	case StateProcessed:
		return to == StateVectorized
	default:
		return false
	}
}
