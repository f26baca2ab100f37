// Package service holds warbler's business logic: the user directory,
// the social graph, the message store and the feed assembler.
package service

import (
	"context"

	"warbler/internal/models"
	"warbler/internal/repository"
)

// FeedLimit caps feeds and profile message lists.
const FeedLimit = 100

// unbounded disables LIMIT in repository list queries.
const unbounded = -1

// Repositories groups the data access dependencies shared by the services.
type Repositories struct {
	Users    repository.UserRepository
	Messages repository.MessageRepository
	Follows  repository.FollowRepository
	Likes    repository.LikeRepository
}

// markLiked sets Liked on every message in msgs that viewerID liked.
func markLiked(ctx context.Context, likes repository.LikeRepository, viewerID uint, msgs []*models.Message) error {
	if viewerID == 0 || len(msgs) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	liked, err := likes.LikedMessageIDs(ctx, viewerID, ids)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		m.Liked = liked[m.ID]
	}
	return nil
}
