package domain

import "context"

// JobRepository is the driven port for job persistence.
type JobRepository interface {
	Create(ctx context.Context, target TargetType, speed int) (*Job, error)
	Get(ctx context.Context, id int64) (*Job, error)
	Update(ctx context.Context, id int64, upd JobUpdate) (*Job, error)
}

// SettingStore is the driven port for global key/value settings.
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// AccountClient establishes authenticated sessions from exported cookies.
type AccountClient interface {
	Login(ctx context.Context, cookies []Cookie) (Session, error)
}

// Session is an authenticated handle against the external account.
type Session interface {
	Username() string
	LikedFeed() Feed
	TimelineFeed() Feed
	Unlike(ctx context.Context, post Post) error
	Comments(ctx context.Context, mediaID string) ([]Comment, error)
	DeleteComment(ctx context.Context, mediaID, commentID string) error
}

// Feed is a lazily-paginated sequence of posts.
type Feed interface {
	Name() string
	// Next fetches the next page. An empty page means the feed is exhausted.
	Next(ctx context.Context) ([]Post, error)
	// MoreAvailable reports whether further pages exist after the last
	// fetched one.
	MoreAvailable() bool
}

// Post is one candidate media record from a feed.
type Post struct {
	ID     string // internal media id (pk)
	Code   string // shortcode used in post URLs
	Author string
}

// URL returns the public post URL.
func (p Post) URL() string {
	return "https://www.instagram.com/p/" + p.Code + "/"
}

// Comment is one comment on a post.
type Comment struct {
	ID     string
	Author string
	Text   string
}

// JobController starts background execution and signals cooperative stops.
type JobController interface {
	// Start launches the job's execution in the background. Exactly one
	// execution per job id; errors surface only through the job record.
	Start(job *Job, cookieJSON string)
	// Stop requests cooperative termination. Returns false if the job has
	// no active execution.
	Stop(id int64) bool
}
