package worker

import (
	"context"
	"fmt"

	"github.com/hylfro/instasweep/internal/domain"
)

// strategy binds a target type to its feed chain and per-post mutation.
// Selected once at job start.
type strategy interface {
	// sources returns the ordered feed chain; each feed is drained fully
	// before the next one starts.
	sources() []domain.Feed
	// logThreshold is the speed below which every outcome is logged;
	// at or above it only every 10th outcome is.
	logThreshold() int
	// process performs the mutation(s) for one post, reporting each
	// outcome to the sink.
	process(ctx context.Context, post domain.Post, sink *outcomeSink)
}

func strategyFor(target domain.TargetType, session domain.Session) strategy {
	if target == domain.TargetComment {
		return &commentStrategy{session: session}
	}
	return &likeStrategy{session: session}
}

// likeStrategy unlikes every post in the liked feed.
type likeStrategy struct {
	session domain.Session
}

func (s *likeStrategy) sources() []domain.Feed {
	return []domain.Feed{s.session.LikedFeed()}
}

func (s *likeStrategy) logThreshold() int { return 50 }

func (s *likeStrategy) process(ctx context.Context, post domain.Post, sink *outcomeSink) {
	if err := s.session.Unlike(ctx, post); err != nil {
		sink.failure(ctx, fmt.Sprintf("[ERROR] Failed to unlike post: %v", err))
		return
	}
	sink.success(ctx, fmt.Sprintf("[SUCCESS] Unliked post by @%s: %s", author(post), post.URL()))
}

// commentStrategy walks the timeline feed, then the liked feed as a second
// pass, deleting the account's own comments on each post. Zero, one or many
// deletes per post.
type commentStrategy struct {
	session domain.Session
}

func (s *commentStrategy) sources() []domain.Feed {
	return []domain.Feed{s.session.TimelineFeed(), s.session.LikedFeed()}
}

func (s *commentStrategy) logThreshold() int { return 10 }

func (s *commentStrategy) process(ctx context.Context, post domain.Post, sink *outcomeSink) {
	// Author is bound here, inside the unit that can fail, so error
	// messages never borrow it from a sibling post.
	who := author(post)

	comments, err := s.session.Comments(ctx, post.ID)
	if err != nil {
		sink.failure(ctx, fmt.Sprintf("[ERROR] Failed to fetch comments on post by @%s: %v", who, err))
		return
	}

	for _, c := range comments {
		if c.Author != s.session.Username() {
			continue
		}
		if err := s.session.DeleteComment(ctx, post.ID, c.ID); err != nil {
			sink.failure(ctx, fmt.Sprintf("[ERROR] Failed to delete comment on post by @%s: %v", who, err))
			continue
		}
		sink.success(ctx, fmt.Sprintf("[SUCCESS] Deleted comment on post by @%s: %s", who, post.URL()))
	}
}

func author(post domain.Post) string {
	if post.Author == "" {
		return "unknown"
	}
	return post.Author
}
