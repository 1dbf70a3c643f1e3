package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"chirp/internal/models"
	"chirp/internal/repository"
	"chirp/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn        func(context.Context, *models.Post) error
	createReplyFn   func(context.Context, *models.Post) error
	getByIDFn       func(context.Context, uint) (*models.Post, error)
	getCountersFn   func(context.Context, uint) (*models.Post, error)
	deleteFn        func(context.Context, uint) error
	listOriginalsFn func(context.Context, repository.Page) ([]*models.Post, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) CreateReply(ctx context.Context, post *models.Post) error {
	return s.createReplyFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) GetCounters(ctx context.Context, id uint) (*models.Post, error) {
	if s.getCountersFn != nil {
		return s.getCountersFn(ctx, id)
	}
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) ListOriginals(ctx context.Context, page repository.Page) ([]*models.Post, error) {
	return s.listOriginalsFn(ctx, page)
}
func (s *postRepoStub) ListByAuthor(context.Context, uint, models.PostKind, repository.Page) ([]*models.Post, error) {
	return nil, nil
}
func (s *postRepoStub) ListReplies(context.Context, uint, repository.Page) ([]*models.Post, error) {
	return nil, nil
}
func (s *postRepoStub) ListEngagedBy(context.Context, models.EngagementKind, uint, repository.Page) ([]*models.Post, error) {
	return nil, nil
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:        func(_ context.Context, _ *models.Post) error { return nil },
		createReplyFn:   func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn:       func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		deleteFn:        func(_ context.Context, _ uint) error { return nil },
		listOriginalsFn: func(_ context.Context, _ repository.Page) ([]*models.Post, error) { return nil, nil },
	}
}

func TestEngagementService_CreatePost_Validation(t *testing.T) {
	repo := noopPostRepo()
	svc := NewEngagementService(nil, repo, nil)
	actor := &models.User{ID: 1, Username: "alice"}
	parent := uint(9)

	tests := []struct {
		name string
		in   CreatePostInput
	}{
		{name: "blank text", in: CreatePostInput{Text: "   "}},
		{name: "too long", in: CreatePostInput{Text: strings.Repeat("a", maxPostTextLen+1)}},
		{name: "unknown kind", in: CreatePostInput{Text: "hi", Kind: "QUOTE"}},
		{name: "reply without parent", in: CreatePostInput{Text: "hi", Kind: models.PostKindReply}},
		{name: "original with parent", in: CreatePostInput{Text: "hi", Kind: models.PostKindOriginal, ParentID: &parent}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePost(context.Background(), actor, tt.in)
			assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)
		})
	}
}

func TestEngagementService_CreatePost_InfersReplyFromParent(t *testing.T) {
	repo := noopPostRepo()
	var replied *models.Post
	repo.createReplyFn = func(_ context.Context, p *models.Post) error {
		replied = p
		p.ID = 5
		return nil
	}
	svc := NewEngagementService(nil, repo, nil)
	parent := uint(3)

	resp, err := svc.CreatePost(context.Background(), &models.User{ID: 1, Username: "alice"}, CreatePostInput{Text: " hey ", ParentID: &parent})
	require.NoError(t, err)
	require.NotNil(t, replied)
	assert.Equal(t, "hey", replied.Text)
	assert.Equal(t, uint(5), resp.ID)
	assert.Equal(t, "alice", resp.Author.Username)
}

func TestEngagementService_DeletePost_OnlyAuthor(t *testing.T) {
	repo := noopPostRepo()
	deleted := false
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, UserID: 7}, nil
	}
	repo.deleteFn = func(_ context.Context, _ uint) error {
		deleted = true
		return nil
	}
	svc := NewEngagementService(nil, repo, nil)

	err := svc.DeletePost(context.Background(), &models.User{ID: 8}, 1)
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	assert.False(t, deleted)

	require.NoError(t, svc.DeletePost(context.Background(), &models.User{ID: 7}, 1))
	assert.True(t, deleted)
}

func TestEngagementService_CounterReadsSkipAuthorJoin(t *testing.T) {
	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, _ uint) (*models.Post, error) {
		t.Error("counter reads must not load the full post")
		return nil, models.NewInternalError(nil)
	}
	repo.getCountersFn = func(_ context.Context, id uint) (*models.Post, error) {
		if id != 3 {
			return nil, models.NewNotFoundError("Post", id)
		}
		return &models.Post{ID: id, LikeCount: 4}, nil
	}
	svc := NewEngagementService(nil, repo, nil)

	count, err := svc.LikeCounter(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	_, err = svc.LikeCounter(context.Background(), 9)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	_, err = svc.IsLiked(context.Background(), &models.User{ID: 1}, 9)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestEngagementService_RequiresActor(t *testing.T) {
	svc := NewEngagementService(nil, noopPostRepo(), nil)

	_, err := svc.ToggleLike(context.Background(), nil, 1)
	assert.True(t, models.IsCode(err, models.CodeUnauthenticated))
	_, err = svc.IsBookmarked(context.Background(), nil, 1)
	assert.True(t, models.IsCode(err, models.CodeUnauthenticated))
}

func TestEngagementService_TogglePairIsIdentity(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, stack.db, "alice")
	post := testutil.CreatePost(t, stack.db, alice.ID, "hello")

	toggles := map[models.EngagementKind]func(context.Context, *models.User, uint) (*models.ToggleResult, error){
		models.EngagementLike:     stack.engagement.ToggleLike,
		models.EngagementRetweet:  stack.engagement.ToggleRetweet,
		models.EngagementBookmark: stack.engagement.ToggleBookmark,
	}
	checks := map[models.EngagementKind]func(context.Context, *models.User, uint) (bool, error){
		models.EngagementLike:     stack.engagement.IsLiked,
		models.EngagementRetweet:  stack.engagement.IsRetweeted,
		models.EngagementBookmark: stack.engagement.IsBookmarked,
	}

	before := testutil.ReloadPost(t, stack.db, post.ID)
	for kind, toggle := range toggles {
		on, err := toggle(ctx, alice, post.ID)
		require.NoError(t, err)
		assert.Equal(t, kind.StateFor(true), on.State)

		engaged, err := checks[kind](ctx, alice, post.ID)
		require.NoError(t, err)
		assert.True(t, engaged)

		off, err := toggle(ctx, alice, post.ID)
		require.NoError(t, err)
		assert.Equal(t, kind.StateFor(false), off.State)

		engaged, err = checks[kind](ctx, alice, post.ID)
		require.NoError(t, err)
		assert.False(t, engaged)
	}
	after := testutil.ReloadPost(t, stack.db, post.ID)

	assert.Equal(t, before.LikeCount, after.LikeCount)
	assert.Equal(t, before.RetweetCount, after.RetweetCount)
	assert.Equal(t, before.ReplyCount, after.ReplyCount)
}

func TestEngagementService_LikeCountMatchesLiveLikesUnderConcurrency(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, stack.db, "author")
	post := testutil.CreatePost(t, stack.db, author.ID, "hot take")

	fans := make([]*models.User, 5)
	for i := range fans {
		fans[i] = testutil.CreateUser(t, stack.db, "fan"+string(rune('a'+i)))
	}

	var wg sync.WaitGroup
	for i, fan := range fans {
		for n := 0; n <= i; n++ {
			wg.Add(1)
			go func(u *models.User) {
				defer wg.Done()
				_, err := stack.engagement.ToggleLike(ctx, u, post.ID)
				assert.NoError(t, err)
			}(fan)
		}
	}
	wg.Wait()

	var live int64
	require.NoError(t, stack.db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&live).Error)
	// fan i toggled i+1 times, so fans a, c and e end up liking.
	assert.Equal(t, int64(3), live)

	count, err := stack.engagement.LikeCounter(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, live, count)
	assert.Zero(t, stack.engagement.locks.size())
}

func TestEngagementService_ReplyIncrementsParentByOne(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, stack.db, "alice")
	bob := testutil.CreateUser(t, stack.db, "bob")

	root, err := stack.engagement.CreatePost(ctx, alice, CreatePostInput{Text: "root"})
	require.NoError(t, err)
	assert.Equal(t, models.PostKindOriginal, root.Kind)

	reply, err := stack.engagement.CreatePost(ctx, bob, CreatePostInput{Text: "reply", Kind: models.PostKindReply, ParentID: &root.ID})
	require.NoError(t, err)
	assert.Equal(t, models.PostKindReply, reply.Kind)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, root.ID, *reply.ParentID)

	assert.Equal(t, int64(1), testutil.ReloadPost(t, stack.db, root.ID).ReplyCount)

	missing := uint(9999)
	_, err = stack.engagement.CreatePost(ctx, bob, CreatePostInput{Text: "lost", ParentID: &missing})
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	replies, err := stack.engagement.GetRepliesForPost(ctx, root.ID, repository.Page{})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "bob", replies[0].Author.Username)

	byBob, err := stack.engagement.GetRepliesByUsername(ctx, "bob", repository.Page{})
	require.NoError(t, err)
	assert.Len(t, byBob, 1)

	require.NoError(t, stack.engagement.DeletePost(ctx, bob, reply.ID))
	assert.Equal(t, int64(0), testutil.ReloadPost(t, stack.db, root.ID).ReplyCount)
}

func TestEngagementService_ConcurrentRepliesAllCount(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, stack.db, "alice")
	root := testutil.CreatePost(t, stack.db, alice.ID, "root")

	const replies = 20
	repliers := make([]*models.User, 4)
	for i := range repliers {
		repliers[i] = testutil.CreateUser(t, stack.db, "replier"+string(rune('a'+i)))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []error
	)
	for i := 0; i < replies; i++ {
		wg.Add(1)
		go func(u *models.User) {
			defer wg.Done()
			_, err := stack.engagement.CreatePost(ctx, u, CreatePostInput{Text: "me too", ParentID: &root.ID})
			if err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
		}(repliers[i%len(repliers)])
	}
	wg.Wait()

	assert.Empty(t, failures)
	assert.Equal(t, int64(replies), testutil.ReloadPost(t, stack.db, root.ID).ReplyCount)

	var stored int64
	require.NoError(t, stack.db.Model(&models.Post{}).Where("parent_id = ?", root.ID).Count(&stored).Error)
	assert.Equal(t, int64(replies), stored)
}

func TestEngagementService_LikeUnlikeScenario(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, stack.db, "alice")
	bob := testutil.CreateUser(t, stack.db, "bob")

	post, err := stack.engagement.CreatePost(ctx, alice, CreatePostInput{Text: "like me"})
	require.NoError(t, err)

	liked, err := stack.engagement.ToggleLike(ctx, bob, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateLiked, liked.State)
	assert.Equal(t, int64(1), liked.Count)

	likes, err := stack.engagement.GetLikedByUsername(ctx, "bob", repository.Page{})
	require.NoError(t, err)
	require.Len(t, likes, 1)
	assert.Equal(t, int64(1), likes[0].LikeCount)

	unliked, err := stack.engagement.ToggleLike(ctx, bob, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateUnliked, unliked.State)

	count, err := stack.engagement.LikeCounter(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	likes, err = stack.engagement.GetLikedByUsername(ctx, "bob", repository.Page{})
	require.NoError(t, err)
	assert.Empty(t, likes)
}

func TestEngagementService_Projections(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, stack.db, "alice")
	bob := testutil.CreateUser(t, stack.db, "bob")

	post, err := stack.engagement.CreatePost(ctx, alice, CreatePostInput{Text: "share me"})
	require.NoError(t, err)
	_, err = stack.engagement.ToggleRetweet(ctx, bob, post.ID)
	require.NoError(t, err)
	_, err = stack.engagement.ToggleBookmark(ctx, bob, post.ID)
	require.NoError(t, err)

	all, err := stack.engagement.GetAllPosts(ctx, repository.Page{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(1), all[0].RetweetCount)

	retweets, err := stack.engagement.GetRetweetsByUsername(ctx, "bob", repository.Page{})
	require.NoError(t, err)
	assert.Len(t, retweets, 1)

	bookmarks, err := stack.engagement.GetBookmarksByUsername(ctx, "bob", repository.Page{})
	require.NoError(t, err)
	assert.Len(t, bookmarks, 1)

	mine, err := stack.engagement.GetPostsByUsername(ctx, "alice", repository.Page{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = stack.engagement.GetPostsByUsername(ctx, "nobody", repository.Page{})
	assert.True(t, models.IsCode(err, models.CodeUserNotFound))

	_, err = stack.engagement.GetRepliesForPost(ctx, 4242, repository.Page{})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
