package merging

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// InvalidMergeRequest covers bad ids, self-merges and sources that were
// already merged away.
func InvalidMergeRequest(format string, args ...any) error {
	return httperror.NewHTTPErrorf(http.StatusBadRequest, format, args...)
}

// ConflictRequiresResolution is returned when a conflicting field has no
// override supplied. Conflicting scalars are never silently defaulted to the
// keep part's value.
func ConflictRequiresResolution(field string, values []string) error {
	return httperror.NewHTTPErrorf(http.StatusConflict,
		"field %q has conflicting values %v: supply a fieldOverrides entry", field, values)
}

// MergeExecutionFailed wraps a transactional step failure, identifying the
// failing step and table. The whole transaction is rolled back.
func MergeExecutionFailed(step, table string, err error) error {
	return httperror.NewHTTPErrorf(http.StatusInternalServerError,
		"merge failed at step %s (table %s): %v", step, table, err)
}

// PreviewComputationFailed marks a preview failure. Previews are advisory and
// may simply be retried.
func PreviewComputationFailed(err error) error {
	return httperror.NewHTTPErrorf(http.StatusInternalServerError, "preview computation failed: %v", err)
}

// IsInvalidMergeRequest reports whether err is an InvalidMergeRequest.
func IsInvalidMergeRequest(err error) bool {
	return httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusBadRequest
}

// IsConflictRequiresResolution reports whether err is a ConflictRequiresResolution.
func IsConflictRequiresResolution(err error) bool {
	return httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusConflict
}
