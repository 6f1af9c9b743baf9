package jobqueue

import (
	"time"

	"github.com/goccy/go-json"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeCollectRecentlyPlayed              JobType = "collect_recently_played"
	JobTypeCollectAllMembers                  JobType = "collect_all_members"
	JobTypeUpdateArtistsDetails               JobType = "update_artists_details"
	JobTypeUpdatePlaylistContextDetails       JobType = "update_playlist_context_details"
	JobTypeSweepMissingArtistDetails          JobType = "sweep_missing_artist_details"
	JobTypeSweepMissingPlaylistContextDetails JobType = "sweep_missing_playlist_context_details"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// RetryPolicy bounds how often and how late a failed job runs again.
type RetryPolicy struct {
	MaxRetries int
	// Delay returns the wait before the given attempt (1-based).
	Delay func(attempt int) time.Duration
}

func fixedDelay(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

func linearDelay(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration { return step * time.Duration(attempt) }
}

var retryPolicies = map[JobType]RetryPolicy{
	JobTypeCollectRecentlyPlayed:        {MaxRetries: 3, Delay: fixedDelay(time.Minute)},
	JobTypeUpdateArtistsDetails:         {MaxRetries: 3, Delay: linearDelay(time.Minute)},
	JobTypeUpdatePlaylistContextDetails: {MaxRetries: 3, Delay: linearDelay(time.Minute)},
}

// PolicyFor returns the retry policy of jobType. Fan-out and sweep jobs are
// not retried; the next tick runs them again.
func PolicyFor(jobType JobType) RetryPolicy {
	if p, ok := retryPolicies[jobType]; ok {
		return p
	}
	return RetryPolicy{MaxRetries: 0, Delay: fixedDelay(time.Minute)}
}

// CollectJobPayload contains the payload for recently played collection jobs
type CollectJobPayload struct {
	MemberID uint `json:"member_id"`
	Days     int  `json:"days"`
}

// ToMap converts the payload to a map for storage
func (p CollectJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"member_id": p.MemberID,
		"days":      p.Days,
	}
}

func CollectJobPayloadFromMap(data map[string]interface{}) (*CollectJobPayload, error) {
	var payload CollectJobPayload
	return &payload, decodePayload(data, &payload)
}

// DetailsJobPayload names the catalog rows to enrich and whose token to use.
type DetailsJobPayload struct {
	IDs      []uint `json:"ids"`
	MemberID uint   `json:"member_id"`
}

func (p DetailsJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"ids":       p.IDs,
		"member_id": p.MemberID,
	}
}

func DetailsJobPayloadFromMap(data map[string]interface{}) (*DetailsJobPayload, error) {
	var payload DetailsJobPayload
	return &payload, decodePayload(data, &payload)
}

// decodePayload round-trips through JSON so numbers stored as float64 land in typed fields.
func decodePayload(data map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount <= j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
