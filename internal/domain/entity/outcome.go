package entity

// FetchOutcome records where the fetch stage stopped for one message.
type FetchOutcome int

const (
	// OutcomeDropped means the message was malformed and discarded.
	OutcomeDropped FetchOutcome = iota
	// OutcomeSkipped means the catalog returned no item, so nothing was stored.
	OutcomeSkipped
	// OutcomeUploadFailed means the item was fetched but the blob write failed.
	OutcomeUploadFailed
	// OutcomePartialFailure means the blob was written but the Queue B send failed.
	OutcomePartialFailure
	// OutcomeForwarded means the blob was written and the validation task sent.
	OutcomeForwarded
	// OutcomeFailed means a provisioning or infrastructure failure stopped
	// processing and the message should be redelivered.
	OutcomeFailed
)

func (o FetchOutcome) String() string {
	switch o {
	case OutcomeDropped:
		return "dropped"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeUploadFailed:
		return "upload_failed"
	case OutcomePartialFailure:
		return "partial_failure"
	case OutcomeForwarded:
		return "forwarded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}
