package jobqueue

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Walrus/internal/pkg/ingestion"
	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
)

// Ingestor is the part of the ingestion service the background jobs drive.
type Ingestor interface {
	CollectForMember(ctx context.Context, memberID uint, days int) (*ingestion.CollectResult, error)
	CollectAll(ctx context.Context, days int) (int, error)
	UpdateArtistDetails(ctx context.Context, artistIDs []uint, memberID uint) (int, error)
	UpdatePlaylistContextDetails(ctx context.Context, contextIDs []uint, memberID uint) (int, error)
	SweepMissingArtistDetails(ctx context.Context) (int, error)
	SweepMissingPlaylistContextDetails(ctx context.Context) (int, error)
}

// RegisterIngestion binds every ingestion job type to svc.
func RegisterIngestion(q *Queue, svc Ingestor) {
	q.Register(JobTypeCollectRecentlyPlayed, func(ctx context.Context, job *Job) error {
		p, err := CollectJobPayloadFromMap(job.Payload)
		if err != nil {
			return invalidPayload(job, err)
		}
		_, err = svc.CollectForMember(ctx, p.MemberID, p.Days)
		return err
	})
	q.Register(JobTypeCollectAllMembers, func(ctx context.Context, job *Job) error {
		p, err := CollectJobPayloadFromMap(job.Payload)
		if err != nil {
			return invalidPayload(job, err)
		}
		_, err = svc.CollectAll(ctx, p.Days)
		return err
	})
	q.Register(JobTypeUpdateArtistsDetails, func(ctx context.Context, job *Job) error {
		p, err := DetailsJobPayloadFromMap(job.Payload)
		if err != nil {
			return invalidPayload(job, err)
		}
		_, err = svc.UpdateArtistDetails(ctx, p.IDs, p.MemberID)
		return err
	})
	q.Register(JobTypeUpdatePlaylistContextDetails, func(ctx context.Context, job *Job) error {
		p, err := DetailsJobPayloadFromMap(job.Payload)
		if err != nil {
			return invalidPayload(job, err)
		}
		_, err = svc.UpdatePlaylistContextDetails(ctx, p.IDs, p.MemberID)
		return err
	})
	q.Register(JobTypeSweepMissingArtistDetails, func(ctx context.Context, _ *Job) error {
		_, err := svc.SweepMissingArtistDetails(ctx)
		return err
	})
	q.Register(JobTypeSweepMissingPlaylistContextDetails, func(ctx context.Context, _ *Job) error {
		_, err := svc.SweepMissingPlaylistContextDetails(ctx)
		return err
	})
}

func invalidPayload(job *Job, err error) error {
	log.Errorf("[JobQueue] Job %s has an unreadable payload: %v", job.ID, err)
	return &provider.Error{
		Code:    provider.CodeValidation,
		Message: "invalid job payload",
		Details: map[string]any{"job_id": job.ID},
		Err:     err,
	}
}

// EnqueueCollect queues a recently played collection for memberID.
func (q *Queue) EnqueueCollect(ctx context.Context, memberID uint, days int) error {
	_, err := q.EnqueueJob(ctx, JobTypeCollectRecentlyPlayed, CollectJobPayload{MemberID: memberID, Days: days}.ToMap())
	return err
}

// EnqueueCollectAll queues the fan-out over all collectable members.
func (q *Queue) EnqueueCollectAll(ctx context.Context, days int) error {
	_, err := q.EnqueueJob(ctx, JobTypeCollectAllMembers, CollectJobPayload{Days: days}.ToMap())
	return err
}

func (q *Queue) EnqueueArtistDetails(ctx context.Context, artistIDs []uint, memberID uint) error {
	_, err := q.EnqueueJob(ctx, JobTypeUpdateArtistsDetails, DetailsJobPayload{IDs: artistIDs, MemberID: memberID}.ToMap())
	return err
}

func (q *Queue) EnqueuePlaylistContextDetails(ctx context.Context, contextIDs []uint, memberID uint) error {
	_, err := q.EnqueueJob(ctx, JobTypeUpdatePlaylistContextDetails, DetailsJobPayload{IDs: contextIDs, MemberID: memberID}.ToMap())
	return err
}

var _ ingestion.Scheduler = (*Queue)(nil)
