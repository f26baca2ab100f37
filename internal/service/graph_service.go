package service

import (
	"context"

	"warbler/internal/models"
	"warbler/internal/observability"
)

// GraphService maintains follow and like edges.
type GraphService struct {
	repos Repositories
}

// NewGraphService returns a GraphService.
func NewGraphService(repos Repositories) *GraphService {
	return &GraphService{repos: repos}
}

// Follow makes followerID follow followeeID. Following twice is a no-op.
func (s *GraphService) Follow(ctx context.Context, followerID, followeeID uint) error {
	if _, err := s.repos.Users.GetByID(ctx, followeeID); err != nil {
		return err
	}
	created, err := s.repos.Follows.Create(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if created {
		observability.FollowEvents.WithLabelValues("follow").Inc()
	}
	return nil
}

// Unfollow removes the follow edge if there is one.
func (s *GraphService) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	if _, err := s.repos.Users.GetByID(ctx, followeeID); err != nil {
		return err
	}
	removed, err := s.repos.Follows.Delete(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if removed {
		observability.FollowEvents.WithLabelValues("unfollow").Inc()
	}
	return nil
}

// Like marks messageID as liked by userID. Liking twice is a no-op.
func (s *GraphService) Like(ctx context.Context, userID, messageID uint) error {
	if _, err := s.repos.Messages.GetByID(ctx, messageID); err != nil {
		return err
	}
	created, err := s.repos.Likes.Create(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if created {
		observability.LikeEvents.WithLabelValues("like").Inc()
	}
	return nil
}

// Unlike removes the like edge if there is one.
func (s *GraphService) Unlike(ctx context.Context, userID, messageID uint) error {
	if _, err := s.repos.Messages.GetByID(ctx, messageID); err != nil {
		return err
	}
	removed, err := s.repos.Likes.Delete(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if removed {
		observability.LikeEvents.WithLabelValues("unlike").Inc()
	}
	return nil
}

// Followers lists the users following userID, oldest edge first.
func (s *GraphService) Followers(ctx context.Context, userID uint) ([]*models.User, error) {
	if _, err := s.repos.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repos.Follows.ListFollowers(ctx, userID)
}

// Following lists the users userID follows, oldest edge first.
func (s *GraphService) Following(ctx context.Context, userID uint) ([]*models.User, error) {
	if _, err := s.repos.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repos.Follows.ListFollowing(ctx, userID)
}

// LikedMessages lists the messages userID liked, oldest like first.
func (s *GraphService) LikedMessages(ctx context.Context, userID uint) ([]*models.Message, error) {
	if _, err := s.repos.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	msgs, err := s.repos.Likes.ListLikedMessages(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		m.Liked = true
	}
	return msgs, nil
}
