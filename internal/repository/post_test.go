package repository

import (
	"context"
	"testing"

	"chirp/internal/models"
	"chirp/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func uintPtr(v uint) *uint { return &v }

func TestPostRepository_CreateReply_IncrementsParentOnce(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "alice")
	parent := testutil.CreatePost(t, db, author.ID, "root")

	reply := &models.Post{UserID: author.ID, Text: "first", ParentID: uintPtr(parent.ID)}
	require.NoError(t, repo.CreateReply(ctx, reply))

	assert.NotZero(t, reply.ID)
	assert.Equal(t, models.PostKindReply, reply.Kind)
	assert.Equal(t, int64(1), testutil.ReloadPost(t, db, parent.ID).ReplyCount)
}

func TestPostRepository_CreateReply_MissingParent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	author := testutil.CreateUser(t, db, "alice")

	err := repo.CreateReply(context.Background(), &models.Post{UserID: author.ID, Text: "lost", ParentID: uintPtr(404)})
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	var count int64
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPostRepository_CreateReply_RequiresParent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)

	err := repo.CreateReply(context.Background(), &models.Post{UserID: 1, Text: "orphan"})
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestPostRepository_CreateReply_SerializationFailuresExhaustRetries(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	for i := 0; i < maxTxRetries+1; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .* FROM "posts"`).
			WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
		mock.ExpectRollback()
	}

	err := repo.CreateReply(context.Background(), &models.Post{UserID: 1, Text: "busy", ParentID: uintPtr(7)})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_Create_ForcesOriginal(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	author := testutil.CreateUser(t, db, "alice")

	post := &models.Post{UserID: author.ID, Text: "hello", Kind: models.PostKindReply, ParentID: uintPtr(3)}
	require.NoError(t, repo.Create(context.Background(), post))

	stored := testutil.ReloadPost(t, db, post.ID)
	assert.Equal(t, models.PostKindOriginal, stored.Kind)
	assert.Nil(t, stored.ParentID)
}

func TestPostRepository_GetByID(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	author := testutil.CreateUser(t, db, "alice")
	post := testutil.CreatePost(t, db, author.ID, "hello")

	got, err := repo.GetByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.User.Username)

	_, err = repo.GetByID(context.Background(), 999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_GetCounters(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "alice")
	post := testutil.CreatePost(t, db, author.ID, "hello")

	_, err := NewEngagementRepository(db).Toggle(ctx, models.EngagementLike, author.ID, post.ID)
	require.NoError(t, err)

	got, err := repo.GetCounters(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)
	assert.Equal(t, author.ID, got.UserID)
	assert.Equal(t, int64(1), got.LikeCount)
	assert.Empty(t, got.Text)
	assert.Empty(t, got.User.Username)

	_, err = repo.GetCounters(ctx, 999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_GetCounters_SingleQuery(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectQuery(`SELECT "id","user_id","kind","parent_id","reply_count","retweet_count","like_count" FROM "posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "kind", "parent_id", "reply_count", "retweet_count", "like_count"}).
			AddRow(7, 2, "ORIGINAL", nil, 1, 0, 5))

	got, err := repo.GetCounters(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.LikeCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostSchema_CheckConstraints(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	author := testutil.CreateUser(t, db, "alice")
	root := testutil.CreatePost(t, db, author.ID, "root")

	tests := []struct {
		name string
		post *models.Post
	}{
		{name: "reply without parent", post: &models.Post{UserID: author.ID, Text: "x", Kind: models.PostKindReply}},
		{name: "original with parent", post: &models.Post{UserID: author.ID, Text: "x", Kind: models.PostKindOriginal, ParentID: uintPtr(root.ID)}},
		{name: "unknown kind", post: &models.Post{UserID: author.ID, Text: "x", Kind: "QUOTE"}},
		{name: "negative counter", post: &models.Post{UserID: author.ID, Text: "x", Kind: models.PostKindOriginal, LikeCount: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, db.Omit("User").Create(tt.post).Error)
		})
	}

	err := db.Model(&models.Post{}).Where("id = ?", root.ID).
		UpdateColumn("retweet_count", gorm.Expr("retweet_count - ?", 1)).Error
	assert.Error(t, err)
	assert.Zero(t, testutil.ReloadPost(t, db, root.ID).RetweetCount)
}

func TestPostRepository_Delete_CascadesThread(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	engagements := NewEngagementRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	root := testutil.CreatePost(t, db, alice.ID, "root")

	reply := &models.Post{UserID: bob.ID, Text: "reply", ParentID: uintPtr(root.ID)}
	require.NoError(t, repo.CreateReply(ctx, reply))
	nested := &models.Post{UserID: alice.ID, Text: "nested", ParentID: uintPtr(reply.ID)}
	require.NoError(t, repo.CreateReply(ctx, nested))

	_, err := engagements.Toggle(ctx, models.EngagementLike, alice.ID, reply.ID)
	require.NoError(t, err)
	_, err = engagements.Toggle(ctx, models.EngagementBookmark, alice.ID, nested.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, reply.ID))

	var remaining []uint
	require.NoError(t, db.Model(&models.Post{}).Pluck("id", &remaining).Error)
	assert.Equal(t, []uint{root.ID}, remaining)
	assert.Equal(t, int64(0), testutil.ReloadPost(t, db, root.ID).ReplyCount)

	for _, kind := range models.EngagementKinds {
		var rows int64
		require.NoError(t, db.Table(kind.Table()).Count(&rows).Error)
		assert.Zero(t, rows, kind.Table())
	}

	err = repo.Delete(ctx, reply.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_Listings(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	engagements := NewEngagementRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	first := testutil.CreatePost(t, db, alice.ID, "first")
	second := testutil.CreatePost(t, db, bob.ID, "second")
	reply := &models.Post{UserID: bob.ID, Text: "re", ParentID: uintPtr(first.ID)}
	require.NoError(t, repo.CreateReply(ctx, reply))

	originals, err := repo.ListOriginals(ctx, Page{})
	require.NoError(t, err)
	require.Len(t, originals, 2)
	assert.Equal(t, second.ID, originals[0].ID)
	assert.Equal(t, "bob", originals[0].User.Username)

	limited, err := repo.ListOriginals(ctx, Page{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, first.ID, limited[0].ID)

	byBob, err := repo.ListByAuthor(ctx, bob.ID, models.PostKindReply, Page{})
	require.NoError(t, err)
	require.Len(t, byBob, 1)
	assert.Equal(t, reply.ID, byBob[0].ID)

	replies, err := repo.ListReplies(ctx, first.ID, Page{})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, reply.ID, replies[0].ID)

	_, err = engagements.Toggle(ctx, models.EngagementRetweet, alice.ID, second.ID)
	require.NoError(t, err)
	retweeted, err := repo.ListEngagedBy(ctx, models.EngagementRetweet, alice.ID, Page{})
	require.NoError(t, err)
	require.Len(t, retweeted, 1)
	assert.Equal(t, second.ID, retweeted[0].ID)
	assert.Equal(t, "bob", retweeted[0].User.Username)

	liked, err := repo.ListEngagedBy(ctx, models.EngagementLike, alice.ID, Page{})
	require.NoError(t, err)
	assert.Empty(t, liked)
}
