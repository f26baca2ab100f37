package service

import (
	"context"

	"warbler/internal/models"
	"warbler/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// FeedService assembles home feeds.
type FeedService struct {
	repos Repositories
}

// NewFeedService returns a FeedService.
func NewFeedService(repos Repositories) *FeedService {
	return &FeedService{repos: repos}
}

// BuildFeed returns up to FeedLimit messages written by viewerID or anyone
// viewerID follows, newest first. The anonymous viewer (0) gets nil.
func (s *FeedService) BuildFeed(ctx context.Context, viewerID uint) ([]*models.Message, error) {
	if viewerID == 0 {
		return nil, nil
	}

	ctx, span := observability.StartSpan(ctx, "feed.build", attribute.Int64("viewer_id", int64(viewerID)))
	defer span.End()

	msgs, err := s.repos.Messages.ListFeed(ctx, viewerID, FeedLimit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := markLiked(ctx, s.repos.Likes, viewerID, msgs); err != nil {
		span.RecordError(err)
		return nil, err
	}

	observability.FeedSize.Observe(float64(len(msgs)))
	return msgs, nil
}
