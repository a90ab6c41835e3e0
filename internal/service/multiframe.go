package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/audit"
	"github.com/facegate/facegate/internal/domain"
)

const (
	minFrames = 3
	maxFrames = 5
)

// MultiFrameInput is a verification request over several frames captured in
// quick succession.
type MultiFrameInput struct {
	TenantID    uuid.UUID
	Frames      [][]byte
	OwnerID     *uuid.UUID
	Mode        VerifyMode
	TopK        int
	DeviceID    string
	Location    string
	EvidenceURI string
}

// VerifyMultiFrame runs single-frame verification independently on each
// frame, keeps only frames that verify on their own, and majority-votes per
// owner across them. The returned confidence is the mean similarity of the
// winning owner's verified frames, never a single frame's score.
func (r *IdentityResolver) VerifyMultiFrame(ctx context.Context, in MultiFrameInput) (*domain.VerifyResult, error) {
	if len(in.Frames) < minFrames || len(in.Frames) > maxFrames {
		return nil, domain.ErrBadRequest.WithError(
			fmt.Errorf("expected %d to %d frames, got %d", minFrames, maxFrames, len(in.Frames)))
	}

	frameInput := VerifyInput{
		TenantID: in.TenantID,
		OwnerID:  in.OwnerID,
		Mode:     in.Mode,
		TopK:     in.TopK,
	}

	verified := make([]domain.Match, 0, len(in.Frames))
	var lastLiveness *float64
	for i, frame := range in.Frames {
		frameInput.Image = frame

		result, err := r.verifyFrame(ctx, frameInput)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		if result.LivenessScore != nil {
			lastLiveness = result.LivenessScore
		}
		if result.Verified && result.BestMatch != nil {
			verified = append(verified, *result.BestMatch)
		}
	}

	if len(verified) == 0 {
		result := &domain.VerifyResult{
			Status:        domain.StatusNoMatch,
			Matches:       []domain.Match{},
			LivenessScore: lastLiveness,
			Message:       "no frame verified independently",
		}
		r.auditVerify(ctx, VerifyInput{TenantID: in.TenantID, Mode: in.Mode}, audit.EventVerifyNoMatch, false, result)
		return result, nil
	}

	winner, confidence := tallyVotes(verified)

	best := domain.Match{OwnerID: winner, Similarity: confidence}
	for _, m := range verified {
		if m.OwnerID == winner && m.IsPrimary {
			best.ProfileID = m.ProfileID
			best.IsPrimary = true
			break
		}
		if m.OwnerID == winner && best.ProfileID == uuid.Nil {
			best.ProfileID = m.ProfileID
		}
	}

	result := &domain.VerifyResult{
		Status:        domain.StatusMatch,
		Verified:      true,
		Matches:       verified,
		BestMatch:     &best,
		LivenessScore: lastLiveness,
		Message:       fmt.Sprintf("%d of %d frames verified", len(verified), len(in.Frames)),
	}

	r.recordAttendance(VerifyInput{
		TenantID:    in.TenantID,
		DeviceID:    in.DeviceID,
		Location:    in.Location,
		EvidenceURI: in.EvidenceURI,
	}, result)
	r.auditVerify(ctx, VerifyInput{TenantID: in.TenantID, Mode: in.Mode}, audit.EventVerifyMatch, true, result)

	return result, nil
}

// tallyVotes picks the owner with the most verified frames. Ties break on
// higher mean similarity, then on owner id so repeated runs agree.
func tallyVotes(verified []domain.Match) (uuid.UUID, float64) {
	votes := make(map[uuid.UUID]int)
	sums := make(map[uuid.UUID]float64)
	for _, m := range verified {
		votes[m.OwnerID]++
		sums[m.OwnerID] += m.Similarity
	}

	var winner uuid.UUID
	var winnerVotes int
	var winnerMean float64
	for owner, count := range votes {
		mean := sums[owner] / float64(count)
		switch {
		case count > winnerVotes:
		case count == winnerVotes && mean > winnerMean:
		case count == winnerVotes && mean == winnerMean && owner.String() < winner.String():
		default:
			continue
		}
		winner = owner
		winnerVotes = count
		winnerMean = mean
	}

	return winner, winnerMean
}
