package ingest

// StageOutcome is the data-only result of one pipeline stage invocation,
// letting the surrounding orchestrator make trigger/retry decisions without
// inspecting error types.
type StageOutcome string

// Stage outcome values reported by the ingestion coordinator.
const (
	// OutcomeCreated means a new record was created and content stored.
	OutcomeCreated StageOutcome = "created"
	// OutcomeAlreadyExists means the input mapped to an existing record; the
	// invocation was a safe no-op (possibly after an origin-URL backfill).
	OutcomeAlreadyExists StageOutcome = "already_exists"
	// OutcomeDiscarded means the input was processed but intentionally
	// produced no record. Not a failure.
	OutcomeDiscarded StageOutcome = "discarded"
	// OutcomeParsed means stored content was re-extracted and merged into the
	// record. Repeating it only overwrites with freshly recomputed values.
	OutcomeParsed StageOutcome = "parsed"
	// OutcomeRetryableFailure means a transient failure occurred and the
	// external scheduler should re-trigger the stage.
	OutcomeRetryableFailure StageOutcome = "retryable_failure"
)

// DownloadResult is returned by the download stage.
type DownloadResult struct {
	Outcome StageOutcome
	// StorageKey is the blob key (the job id) handed to the parse stage.
	// Empty when the stage discarded the input or failed before a record
	// was identified.
	StorageKey string
}
