package download

// Outcome classifies what happened to one catalog record. Outcomes drive
// logging and the run summary; nothing is retried automatically within a
// run — operators re-run jobs and rely on skip-if-exists to make that cheap.
type Outcome string

const (
	// OutcomeDownloaded: the file was fetched and written.
	OutcomeDownloaded Outcome = "downloaded"

	// OutcomeSkippedExists: the destination file already exists. This is
	// the at-most-once guarantee on re-runs.
	OutcomeSkippedExists Outcome = "skipped-exists"

	// OutcomeSkippedNoDate: the filename did not yield a date for grouping.
	OutcomeSkippedNoDate Outcome = "skipped-no-date"

	// OutcomeSkippedPathError: destination resolution failed closed
	// (mount-prefix violation or containment failure).
	OutcomeSkippedPathError Outcome = "skipped-path-error"

	// OutcomeFailedHTTP: non-200 status or transport failure.
	OutcomeFailedHTTP Outcome = "failed-http"

	// OutcomeDryRun: the fetch would have happened; reported so operators
	// can audit intended actions.
	OutcomeDryRun Outcome = "dry-run"
)

// Saved reports whether the outcome counts toward the saved-paths result:
// real downloads plus dry-run candidates.
func (o Outcome) Saved() bool {
	return o == OutcomeDownloaded || o == OutcomeDryRun
}
