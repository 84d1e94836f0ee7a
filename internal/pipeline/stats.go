package pipeline

import (
	"strings"
	"time"

	"github.com/backmassage/posepipe/internal/batch"
	"github.com/backmassage/posepipe/internal/display"
	"github.com/backmassage/posepipe/internal/logging"
)

// logSummary prints the end-of-batch lines: counts per status, then the
// identifiers that need attention.
func logSummary(log *logging.Logger, r *batch.Report, elapsed time.Duration) {
	log.Info("==============================")
	if r.Counts.UpToDate > 0 {
		log.Info("Done: %d succeeded, %d up to date, %d skipped, %d failed",
			r.Counts.Succeeded, r.Counts.UpToDate, r.Counts.SkippedMissingInput, r.Counts.Failed)
	} else {
		log.Info("Done: %d succeeded, %d skipped, %d failed",
			r.Counts.Succeeded, r.Counts.SkippedMissingInput, r.Counts.Failed)
	}
	log.Info("Summary report (%s):", r.Stage)
	log.Info("  Total items processed: %d", r.Total)
	log.Info("  Elapsed: %s", display.FormatDuration(elapsed))

	if len(r.Excluded) > 0 {
		log.Warn("  Excluded (malformed name): %s", strings.Join(r.Excluded, ", "))
	}
	if len(r.SkippedIDs) > 0 {
		log.Warn("  Skipped (missing input): %s", strings.Join(r.SkippedIDs, ", "))
	}
	if r.Interrupted {
		log.Warn("  Run was interrupted before all items started")
	}
	if err := r.Err(); err != nil {
		log.Error("  Failed: %s", strings.Join(r.FailedIDs, ", "))
		return
	}
	if r.Counts.Succeeded+r.Counts.UpToDate == r.Total {
		log.Success("  All items completed")
	}
}
