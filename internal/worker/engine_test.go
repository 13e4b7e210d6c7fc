package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hylfro/instasweep/internal/domain"
)

const validCookies = `[{"name":"sessionid","value":"abc","domain":".instagram.com"}]`

// memRepo implements domain.JobRepository for testing.
type memRepo struct {
	mu     sync.Mutex
	jobs   map[int64]*domain.Job
	nextID int64
}

func newMemRepo() *memRepo {
	return &memRepo{jobs: make(map[int64]*domain.Job), nextID: 1}
}

func (m *memRepo) Create(ctx context.Context, target domain.TargetType, speed int) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := &domain.Job{
		ID:         m.nextID,
		Status:     domain.StatusPending,
		TargetType: target,
		Speed:      speed,
		Logs:       []string{},
		CreatedAt:  time.Now(),
	}
	m.jobs[m.nextID] = job
	m.nextID++
	return m.clone(job), nil
}

func (m *memRepo) Get(ctx context.Context, id int64) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return m.clone(job), nil
}

func (m *memRepo) Update(ctx context.Context, id int64, upd domain.JobUpdate) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if upd.Status != nil {
		job.Status = *upd.Status
	}
	if upd.TotalToProcess != nil {
		job.TotalToProcess = *upd.TotalToProcess
	}
	if upd.TotalUnliked != nil {
		job.TotalUnliked = *upd.TotalUnliked
	}
	if upd.TotalErrors != nil {
		job.TotalErrors = *upd.TotalErrors
	}
	if upd.Logs != nil {
		job.Logs = append([]string(nil), upd.Logs...)
	}
	return m.clone(job), nil
}

func (m *memRepo) clone(job *domain.Job) *domain.Job {
	cp := *job
	cp.Logs = append([]string(nil), job.Logs...)
	return &cp
}

// fakeFeed implements domain.Feed over fixed pages.
type fakeFeed struct {
	mu      sync.Mutex
	name    string
	pages   [][]domain.Post
	idx     int
	failAt  int // fail the fetch of this page index (0-based); -1 disables
	fetches int
}

func newFakeFeed(name string, pages ...[]domain.Post) *fakeFeed {
	return &fakeFeed{name: name, pages: pages, failAt: -1}
}

func (f *fakeFeed) Name() string { return f.name }

func (f *fakeFeed) Next(ctx context.Context) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.failAt >= 0 && f.idx == f.failAt {
		return nil, errors.New("rate limited")
	}
	if f.idx >= len(f.pages) {
		return nil, nil
	}
	page := f.pages[f.idx]
	f.idx++
	return page, nil
}

func (f *fakeFeed) MoreAvailable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idx < len(f.pages)
}

func (f *fakeFeed) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// fakeSession implements domain.Session with scripted outcomes.
type fakeSession struct {
	mu        sync.Mutex
	username  string
	liked     *fakeFeed
	timeline  *fakeFeed
	unliked   []string
	unlikeErr map[string]error
	onUnlike  func(post domain.Post)
	comments  map[string][]domain.Comment
	deleted   []string
}

func (s *fakeSession) Username() string          { return s.username }
func (s *fakeSession) LikedFeed() domain.Feed    { return s.liked }
func (s *fakeSession) TimelineFeed() domain.Feed { return s.timeline }

func (s *fakeSession) Unlike(ctx context.Context, post domain.Post) error {
	s.mu.Lock()
	hook := s.onUnlike
	err := s.unlikeErr[post.ID]
	if err == nil {
		s.unliked = append(s.unliked, post.ID)
	}
	s.mu.Unlock()
	if hook != nil {
		hook(post)
	}
	return err
}

func (s *fakeSession) Comments(ctx context.Context, mediaID string) ([]domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comments[mediaID], nil
}

func (s *fakeSession) DeleteComment(ctx context.Context, mediaID, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, commentID)
	return nil
}

func (s *fakeSession) unlikedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unliked)
}

// fakeClient implements domain.AccountClient.
type fakeClient struct {
	session  *fakeSession
	loginErr error
}

func (c *fakeClient) Login(ctx context.Context, cookies []domain.Cookie) (domain.Session, error) {
	if c.loginErr != nil {
		return nil, c.loginErr
	}
	return c.session, nil
}

func testLogger() log.Logger {
	return log.Logger{Level: log.ErrorLevel, Writer: log.IOWriter{Writer: io.Discard}}
}

func newTestEngine(repo domain.JobRepository, client domain.AccountClient) *Engine {
	return New(repo, client, Options{}, testLogger())
}

func posts(ids ...string) []domain.Post {
	out := make([]domain.Post, len(ids))
	for i, id := range ids {
		out[i] = domain.Post{ID: id, Code: "c" + id, Author: "author" + id}
	}
	return out
}

func waitForTerminal(t *testing.T, repo domain.JobRepository, id int64) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := repo.Get(context.Background(), id)
		require.NoError(t, err)
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state")
	return nil
}

func startJob(t *testing.T, repo *memRepo, engine *Engine, target domain.TargetType, speed int) *domain.Job {
	t.Helper()
	job, err := repo.Create(context.Background(), target, speed)
	require.NoError(t, err)
	engine.Start(job, validCookies)
	return job
}

func TestLikeJobCompletes(t *testing.T) {
	repo := newMemRepo()
	session := &fakeSession{
		username: "me",
		liked:    newFakeFeed("liked feed", posts("1", "2", "3")),
	}
	engine := newTestEngine(repo, &fakeClient{session: session})

	job := startJob(t, repo, engine, domain.TargetLike, 5)
	final := waitForTerminal(t, repo, job.ID)

	assert.Equal(t, domain.StatusCompleted, final.Status)
	assert.Equal(t, 3, final.TotalToProcess, "single page with no more available")
	assert.Equal(t, 3, final.TotalUnliked)
	assert.Equal(t, 0, final.TotalErrors)
	assert.Equal(t, 3, session.unlikedCount())
	assert.Contains(t, strings.Join(final.Logs, "\n"), "Job completed.")
}

func TestEstimateIncludesLookahead(t *testing.T) {
	repo := newMemRepo()
	session := &fakeSession{
		username: "me",
		liked:    newFakeFeed("liked feed", posts("1", "2"), posts("3")),
	}
	engine := newTestEngine(repo, &fakeClient{session: session})

	job := startJob(t, repo, engine, domain.TargetLike, 5)
	final := waitForTerminal(t, repo, job.ID)

	assert.Equal(t, domain.StatusCompleted, final.Status)
	assert.Equal(t, 2+feedLookahead, final.TotalToProcess, "first page plus lookahead, never revised")
	assert.Equal(t, 3, final.TotalUnliked)
}

func TestPartialFailuresAreCounted(t *testing.T) {
	repo := newMemRepo()
	session := &fakeSession{
		username:  "me",
		liked:     newFakeFeed("liked feed", posts("1", "2", "3")),
		unlikeErr: map[string]error{"2": errors.New("boom")},
	}
	engine := newTestEngine(repo, &fakeClient{session: session})

	job := startJob(t, repo, engine, domain.TargetLike, 5)
	final := waitForTerminal(t, repo, job.ID)

	assert.Equal(t, domain.StatusCompleted, final.Status, "item failures never fail the job")
	assert.Equal(t, 2, final.TotalUnliked)
	assert.Equal(t, 1, final.TotalErrors)
}

func TestStopAbandonsRemainingBatches(t *testing.T) {
	repo := newMemRepo()
	session := &fakeSession{
		username: "me",
		liked:    newFakeFeed("liked feed", posts("1", "2", "3", "4", "5", "6", "7", "8"), posts("9")),
	}
	engine := newTestEngine(repo, &fakeClient{session: session})

	job, err := repo.Create(context.Background(), domain.TargetLike, 4)
	require.NoError(t, err)
	var once sync.Once
	session.onUnlike = func(domain.Post) {
		once.Do(func() { engine.Stop(job.ID) })
	}
	engine.Start(job, validCookies)
	final := waitForTerminal(t, repo, job.ID)

	assert.Equal(t, domain.StatusStopped, final.Status)
	// The in-flight batch finishes; the second batch and second page do not run.
	assert.Equal(t, 4, session.unlikedCount())
	assert.Equal(t, 4, final.TotalUnliked)
	assert.Equal(t, 1, session.liked.fetchCount())
}

func TestStopBeforeTraversal(t *testing.T) {
	repo := newMemRepo()
	blocked := make(chan struct{})
	session := &fakeSession{username: "me", liked: newFakeFeed("liked feed", posts("1"))}
	client := &blockingClient{session: session, release: blocked}
	engine := newTestEngine(repo, client)

	job, err := repo.Create(context.Background(), domain.TargetLike, 5)
	require.NoError(t, err)
	engine.Start(job, validCookies)

	require.True(t, engine.Stop(job.ID))
	close(blocked)

	final := waitForTerminal(t, repo, job.ID)
	assert.Equal(t, domain.StatusStopped, final.Status)
	assert.Equal(t, 0, session.unlikedCount())
}

// blockingClient holds Login until release is closed.
type blockingClient struct {
	session *fakeSession
	release chan struct{}
}

func (c *blockingClient) Login(ctx context.Context, cookies []domain.Cookie) (domain.Session, error) {
	<-c.release
	return c.session, nil
}

func TestSessionFailureFailsJob(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo, &fakeClient{loginErr: domain.ErrSessionInvalid})

	job := startJob(t, repo, engine, domain.TargetLike, 5)
	final := waitForTerminal(t, repo, job.ID)

	assert.Equal(t, domain.StatusFailed, final.Status)
	assert.Contains(t, strings.Join(final.Logs, "\n"), "Session verification failed")
	assert.Equal(t, 0, final.TotalUnliked, "no traversal after a failed probe")
}

func TestInvalidCookiesFailJob(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo, &fakeClient{session: &fakeSession{username: "me"}})

	job, err := repo.Create(context.Background(), domain.TargetLike, 5)
	require.NoError(t, err)
	engine.Start(job, "not json")
	final := waitForTerminal(t, repo, job.ID)

	assert.Equal(t, domain.StatusFailed, final.Status)
	assert.Contains(t, strings.Join(final.Logs, "\n"), "Critical error:")
}

func TestFeedErrorAbortsTraversal(t *testing.T) {
	repo := newMemRepo()
	liked := newFakeFeed("liked feed", posts("1", "2"), posts("3"))
	liked.failAt = 1
	session := &fakeSession{username: "me", liked: liked}
	engine := newTestEngine(repo, &fakeClient{session: session})

	job := startJob(t, repo, engine, domain.TargetLike, 5)
	final := waitForTerminal(t, repo, job.ID)

	assert.Equal(t, domain.StatusCompleted, final.Status, "feed errors resolve through the normal path")
	assert.Equal(t, 2, final.TotalUnliked)
	assert.Equal(t, 1, final.TotalErrors)
	assert.Contains(t, strings.Join(final.Logs, "\n"), "Feed error:")
}

func TestCommentModeSwitchesSources(t *testing.T) {
	repo := newMemRepo()
	session := &fakeSession{
		username: "me",
		timeline: newFakeFeed("timeline feed", posts("t1")),
		liked:    newFakeFeed("liked feed", posts("l1")),
		comments: map[string][]domain.Comment{
			"t1": {
				{ID: "c1", Author: "me", Text: "mine"},
				{ID: "c2", Author: "someone", Text: "not mine"},
			},
			"l1": {
				{ID: "c3", Author: "me", Text: "mine too"},
			},
		},
	}
	engine := newTestEngine(repo, &fakeClient{session: session})

	job := startJob(t, repo, engine, domain.TargetComment, 5)
	final := waitForTerminal(t, repo, job.ID)

	assert.Equal(t, domain.StatusCompleted, final.Status)
	assert.ElementsMatch(t, []string{"c1", "c3"}, session.deleted, "only own comments, from both sources")
	assert.Equal(t, 2, final.TotalUnliked)
	assert.Equal(t, 1, session.timeline.fetchCount())
	assert.Equal(t, 1, session.liked.fetchCount())

	joined := strings.Join(final.Logs, "\n")
	assert.Contains(t, joined, "Reached end of timeline feed.")
	assert.Contains(t, joined, "Reached end of liked feed.")
}

func TestCommentFeedErrorSkipsSecondSource(t *testing.T) {
	repo := newMemRepo()
	timeline := newFakeFeed("timeline feed", posts("t1"))
	timeline.failAt = 0
	session := &fakeSession{
		username: "me",
		timeline: timeline,
		liked:    newFakeFeed("liked feed", posts("l1")),
	}
	engine := newTestEngine(repo, &fakeClient{session: session})

	job := startJob(t, repo, engine, domain.TargetComment, 5)
	final := waitForTerminal(t, repo, job.ID)

	assert.Equal(t, 0, session.liked.fetchCount(), "no source switch after a feed error")
	assert.Equal(t, 1, final.TotalErrors)
}

func TestLogsNeverExceedCap(t *testing.T) {
	repo := newMemRepo()
	var pages [][]domain.Post
	for p := 0; p < 4; p++ {
		pages = append(pages, posts(manyIDs(p*30, 30)...))
	}
	session := &fakeSession{username: "me", liked: newFakeFeed("liked feed", pages...)}
	engine := newTestEngine(repo, &fakeClient{session: session})

	job := startJob(t, repo, engine, domain.TargetLike, 5)
	final := waitForTerminal(t, repo, job.ID)

	assert.Equal(t, domain.StatusCompleted, final.Status)
	assert.LessOrEqual(t, len(final.Logs), domain.MaxLogs)
	assert.Equal(t, 120, final.TotalUnliked)
}

func manyIDs(start, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", start+i)
	}
	return ids
}

func TestRegistryCleanedUpAfterRun(t *testing.T) {
	repo := newMemRepo()
	session := &fakeSession{username: "me", liked: newFakeFeed("liked feed", posts("1"))}
	engine := newTestEngine(repo, &fakeClient{session: session})

	job := startJob(t, repo, engine, domain.TargetLike, 5)
	waitForTerminal(t, repo, job.ID)

	// The flag entry is gone once the run ends, on every exit path.
	assert.Eventually(t, func() bool {
		return !engine.Stop(job.ID)
	}, time.Second, 5*time.Millisecond)
}

func TestCountersAreMonotonic(t *testing.T) {
	repo := newMemRepo()
	session := &fakeSession{
		username: "me",
		liked:    newFakeFeed("liked feed", posts("1", "2", "3", "4"), posts("5", "6")),
	}
	engine := newTestEngine(repo, &fakeClient{session: session})

	job := startJob(t, repo, engine, domain.TargetLike, 2)

	lastProcessed, lastErrors := 0, 0
	for {
		got, err := repo.Get(context.Background(), job.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.TotalUnliked, lastProcessed)
		assert.GreaterOrEqual(t, got.TotalErrors, lastErrors)
		lastProcessed, lastErrors = got.TotalUnliked, got.TotalErrors
		if got.Status.Terminal() {
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 6, lastProcessed)
}
