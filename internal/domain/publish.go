package domain

import "time"

// PublishRecord is the outcome of posting one approved draft to one target.
type PublishRecord struct {
	DraftID        string
	Target         string
	Success        bool
	ExternalPostID string
	Error          string
	AttemptedAt    time.Time
}

// SuccessfulTargets indexes successful records by target.
func SuccessfulTargets(records []PublishRecord) map[string]PublishRecord {
	out := make(map[string]PublishRecord, len(records))
	for _, rec := range records {
		if rec.Success {
			if _, ok := out[rec.Target]; !ok {
				out[rec.Target] = rec
			}
		}
	}
	return out
}

// EffectiveStatus folds the approval status and publish outcomes into one draft status.
func EffectiveStatus(approval DraftStatus, records []PublishRecord) DraftStatus {
	if approval == StatusApproved && len(SuccessfulTargets(records)) > 0 {
		return StatusPublished
	}
	return approval
}
