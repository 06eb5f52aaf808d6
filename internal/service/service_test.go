package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"conduit-api/internal/cache"
	"conduit-api/internal/domain"
	"conduit-api/internal/repository"
	"conduit-api/internal/repository/sqlite"
	"conduit-api/internal/storage"
)

type fakeImages struct {
	objects []storage.Object
	err     error
}

func (f *fakeImages) Upload(_ context.Context, obj storage.Object) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.objects = append(f.objects, obj)
	return "https://cdn.example.com/" + obj.Key, nil
}

type fixture struct {
	users    UserService
	profiles ProfileService
	articles ArticleService
	comments CommentService
	tags     TagService
	images   *fakeImages
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "conduit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	userRepo := sqlite.NewUserRepository(db)
	relationRepo := sqlite.NewRelationshipRepository(db)
	articleRepo := sqlite.NewArticleRepository(db)
	commentRepo := sqlite.NewCommentRepository(db)
	require.NoError(t, userRepo.Init(ctx))
	require.NoError(t, relationRepo.Init(ctx))
	require.NoError(t, articleRepo.Init(ctx))
	require.NoError(t, commentRepo.Init(ctx))

	logger, _ := test.NewNullLogger()
	images := &fakeImages{}
	tags := NewTagService(articleRepo, cache.NewMemory(time.Minute, time.Minute), time.Minute, logger)
	return &fixture{
		users:    NewUserService(userRepo, images, bcrypt.MinCost),
		profiles: NewProfileService(userRepo, relationRepo),
		articles: NewArticleService(articleRepo, userRepo, relationRepo, tags),
		comments: NewCommentService(commentRepo, articleRepo, userRepo, relationRepo),
		tags:     tags,
		images:   images,
	}
}

func (f *fixture) register(t *testing.T, username string) *domain.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) publish(t *testing.T, author *domain.User, title string, tags ...string) *domain.ArticleView {
	t.Helper()
	view, err := f.articles.Create(context.Background(), author.ID, CreateArticleInput{
		Title:       title,
		Description: "about " + title,
		Body:        "body of " + title,
		TagList:     tags,
	})
	require.NoError(t, err)
	return view
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind) *domain.Error {
	t.Helper()
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, kind, de.Kind, de.Error())
	return de
}

func TestUserService_RegisterNeverReturnsPassword(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "alice")

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.PasswordHash)
}

func TestUserService_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.Register(context.Background(), RegisterInput{Username: "  ", Email: "nope"})

	de := requireKind(t, err, domain.KindValidation)
	assert.Equal(t, []string{
		"username can't be blank",
		"email is invalid",
		"password can't be blank",
	}, de.Messages())

	_, err = f.users.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: strings.Repeat("p", 73),
	})
	de = requireKind(t, err, domain.KindValidation)
	assert.Equal(t, []string{"password is too long (maximum is 72 characters)"}, de.Messages())
}

func TestUserService_RegisterAcceptsShortPassword(t *testing.T) {
	f := newFixture(t)
	user, err := f.users.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = f.users.Login(context.Background(), LoginInput{Email: "alice@x.com", Password: "secret"})
	assert.NoError(t, err)
}

func TestUserService_RegisterConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice")

	_, err := f.users.Register(ctx, RegisterInput{Username: "alice", Email: "new@example.com", Password: "password123"})
	de := requireKind(t, err, domain.KindConflict)
	assert.Equal(t, "username", de.Field)

	_, err = f.users.Register(ctx, RegisterInput{Username: "alicia", Email: "alice@example.com", Password: "password123"})
	de = requireKind(t, err, domain.KindConflict)
	assert.Equal(t, "email", de.Field)
}

func TestUserService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	user, err := f.users.Login(ctx, LoginInput{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)
	assert.Empty(t, user.PasswordHash)

	_, err = f.users.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong-password"})
	de := requireKind(t, err, domain.KindValidation)
	assert.Equal(t, []string{"email or password is invalid"}, de.Messages())

	_, err = f.users.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "password123"})
	requireKind(t, err, domain.KindValidation)
}

func TestUserService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	f.register(t, "bob")

	bio := "writes about Go"
	password := "another-secret"
	user, err := f.users.Update(ctx, alice.ID, UpdateUserInput{Bio: &bio, Password: &password})
	require.NoError(t, err)
	assert.Equal(t, bio, user.Bio)
	assert.Equal(t, "alice", user.Username)

	_, err = f.users.Login(ctx, LoginInput{Email: "alice@example.com", Password: password})
	require.NoError(t, err)

	same := "alice"
	_, err = f.users.Update(ctx, alice.ID, UpdateUserInput{Username: &same})
	require.NoError(t, err, "keeping your own username is not a conflict")

	taken := "bob"
	_, err = f.users.Update(ctx, alice.ID, UpdateUserInput{Username: &taken})
	requireKind(t, err, domain.KindConflict)

	_, err = f.users.Update(ctx, "", UpdateUserInput{Bio: &bio})
	requireKind(t, err, domain.KindUnauthenticated)
}

func TestUserService_UploadImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	user, err := f.users.UploadImage(ctx, alice.ID, ImageUpload{
		Filename:    "Me.PNG",
		ContentType: "image/png",
		Body:        bytes.NewReader([]byte("png")),
	})
	require.NoError(t, err)
	require.Len(t, f.images.objects, 1)
	key := f.images.objects[0].Key
	assert.True(t, strings.HasPrefix(key, alice.ID+"/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.Equal(t, "https://cdn.example.com/"+key, user.Image)

	_, err = f.users.UploadImage(ctx, alice.ID, ImageUpload{Filename: "notes.txt", ContentType: "text/plain", Body: strings.NewReader("x")})
	requireKind(t, err, domain.KindValidation)

	f.images.err = errors.New("bucket unavailable")
	_, err = f.users.UploadImage(ctx, alice.ID, ImageUpload{Filename: "a.png", ContentType: "image/png", Body: strings.NewReader("x")})
	require.Error(t, err)
	_, ok := domain.KindOf(err)
	assert.False(t, ok)
}

func TestUserService_UploadImageNotConfigured(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	svc := NewUserService(nil, nil, bcrypt.MinCost)

	_, err := svc.UploadImage(context.Background(), alice.ID, ImageUpload{ContentType: "image/png", Body: strings.NewReader("x")})
	de := requireKind(t, err, domain.KindValidation)
	assert.Equal(t, []string{"image uploads are not configured"}, de.Messages())
}

func TestProfileService_FollowIsVisibleBothWays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	prof, err := f.profiles.Follow(ctx, alice.ID, "bob")
	require.NoError(t, err)
	assert.True(t, prof.Following)

	_, err = f.profiles.Follow(ctx, alice.ID, "bob")
	require.NoError(t, err, "following twice is idempotent")

	prof, err = f.profiles.Get(ctx, alice.ID, "bob")
	require.NoError(t, err)
	assert.True(t, prof.Following)

	prof, err = f.profiles.Get(ctx, bob.ID, "alice")
	require.NoError(t, err)
	assert.False(t, prof.Following)

	prof, err = f.profiles.Get(ctx, "", "bob")
	require.NoError(t, err)
	assert.False(t, prof.Following)

	prof, err = f.profiles.Unfollow(ctx, alice.ID, "bob")
	require.NoError(t, err)
	assert.False(t, prof.Following)

	prof, err = f.profiles.Get(ctx, alice.ID, "bob")
	require.NoError(t, err)
	assert.False(t, prof.Following)
}

func TestProfileService_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	_, err := f.profiles.Follow(ctx, alice.ID, "alice")
	requireKind(t, err, domain.KindValidation)

	_, err = f.profiles.Follow(ctx, alice.ID, "ghost")
	requireKind(t, err, domain.KindNotFound)

	_, err = f.profiles.Follow(ctx, "", "alice")
	requireKind(t, err, domain.KindUnauthenticated)

	_, err = f.profiles.Get(ctx, "", "ghost")
	requireKind(t, err, domain.KindNotFound)
}

func TestArticleService_CreateDerivesUniqueSlugs(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")

	first := f.publish(t, alice, "How to Train Your Dragon", " dragons ", "training", "dragons", "")
	assert.Equal(t, "how-to-train-your-dragon", first.Article.Slug)
	assert.Equal(t, []string{"dragons", "training"}, first.Article.TagList)
	assert.Equal(t, "alice", first.Author.Username)
	assert.False(t, first.Favorited)
	assert.Zero(t, first.Article.FavoritesCount)

	second := f.publish(t, alice, "How to train your dragon")
	assert.NotEqual(t, first.Article.Slug, second.Article.Slug)
	assert.True(t, strings.HasPrefix(second.Article.Slug, "how-to-train-your-dragon-"))
}

func TestArticleService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")

	_, err := f.articles.Create(context.Background(), alice.ID, CreateArticleInput{Title: "t"})
	de := requireKind(t, err, domain.KindValidation)
	assert.Equal(t, []string{"description can't be blank", "body can't be blank"}, de.Messages())

	_, err = f.articles.Create(context.Background(), "", CreateArticleInput{Title: "t", Description: "d", Body: "b"})
	requireKind(t, err, domain.KindUnauthenticated)
}

func TestArticleService_UpdateAndDeleteRequireAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	article := f.publish(t, alice, "Original Title", "go")

	title := "Hijacked"
	_, err := f.articles.Update(ctx, bob.ID, article.Article.Slug, UpdateArticleInput{Title: &title})
	requireKind(t, err, domain.KindForbidden)
	requireKind(t, f.articles.Delete(ctx, bob.ID, article.Article.Slug), domain.KindForbidden)

	title = "New Title"
	updated, err := f.articles.Update(ctx, alice.ID, article.Article.Slug, UpdateArticleInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "new-title", updated.Article.Slug)
	assert.Equal(t, "New Title", updated.Article.Title)
	assert.Equal(t, "about Original Title", updated.Article.Description)
	assert.Equal(t, []string{"go"}, updated.Article.TagList)

	_, err = f.articles.Get(ctx, "", article.Article.Slug)
	requireKind(t, err, domain.KindNotFound)

	updated, err = f.articles.Update(ctx, alice.ID, "new-title", UpdateArticleInput{TagList: []string{}})
	require.NoError(t, err)
	assert.Empty(t, updated.Article.TagList)

	require.NoError(t, f.articles.Delete(ctx, alice.ID, "new-title"))
	_, err = f.articles.Get(ctx, alice.ID, "new-title")
	requireKind(t, err, domain.KindNotFound)
}

func TestArticleService_FavoriteTwiceCountsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	article := f.publish(t, alice, "Popular")

	view, err := f.articles.Favorite(ctx, bob.ID, article.Article.Slug)
	require.NoError(t, err)
	assert.True(t, view.Favorited)
	assert.Equal(t, 1, view.Article.FavoritesCount)

	view, err = f.articles.Favorite(ctx, bob.ID, article.Article.Slug)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Article.FavoritesCount)

	view, err = f.articles.Get(ctx, alice.ID, article.Article.Slug)
	require.NoError(t, err)
	assert.False(t, view.Favorited)
	assert.Equal(t, 1, view.Article.FavoritesCount)

	view, err = f.articles.Unfavorite(ctx, bob.ID, article.Article.Slug)
	require.NoError(t, err)
	assert.False(t, view.Favorited)
	assert.Zero(t, view.Article.FavoritesCount)

	_, err = f.articles.Favorite(ctx, bob.ID, "missing")
	requireKind(t, err, domain.KindNotFound)
}

func TestArticleService_ListAndFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")

	f.publish(t, alice, "A1", "go")
	f.publish(t, bob, "B1", "go")
	f.publish(t, bob, "B2", "rust")

	_, err := f.profiles.Follow(ctx, carol.ID, "bob")
	require.NoError(t, err)

	page, err := f.articles.List(ctx, carol.ID, ListArticlesInput{Tag: "go"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Articles, 2)
	assert.Equal(t, "b1", page.Articles[0].Article.Slug)
	assert.True(t, page.Articles[0].Author.Following)
	assert.False(t, page.Articles[1].Author.Following)

	page, err = f.articles.List(ctx, "", ListArticlesInput{Author: "nobody"})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Articles)

	feed, err := f.articles.Feed(ctx, carol.ID, FeedInput{Limit: "1"})
	require.NoError(t, err)
	assert.Equal(t, 2, feed.Total)
	require.Len(t, feed.Articles, 1)
	assert.Equal(t, "b2", feed.Articles[0].Article.Slug)

	_, err = f.articles.Feed(ctx, "", FeedInput{})
	requireKind(t, err, domain.KindUnauthenticated)
}

func TestArticleService_FeedFollowsTheFollowingSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")

	f.publish(t, alice, "A1")
	f.publish(t, bob, "B1")
	f.publish(t, carol, "C1")

	feed, err := f.articles.Feed(ctx, carol.ID, FeedInput{})
	require.NoError(t, err)
	assert.Zero(t, feed.Total)
	assert.NotNil(t, feed.Articles)
	assert.Empty(t, feed.Articles)

	_, err = f.profiles.Follow(ctx, carol.ID, "alice")
	require.NoError(t, err)
	_, err = f.profiles.Follow(ctx, carol.ID, "bob")
	require.NoError(t, err)

	feed, err = f.articles.Feed(ctx, carol.ID, FeedInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, feed.Total)
	slugs := []string{}
	for _, a := range feed.Articles {
		slugs = append(slugs, a.Article.Slug)
		assert.True(t, a.Author.Following)
	}
	assert.Equal(t, []string{"b1", "a1"}, slugs)

	_, err = f.profiles.Unfollow(ctx, carol.ID, "alice")
	require.NoError(t, err)
	feed, err = f.articles.Feed(ctx, carol.ID, FeedInput{})
	require.NoError(t, err)
	require.Len(t, feed.Articles, 1)
	assert.Equal(t, "b1", feed.Articles[0].Article.Slug)
}

func TestArticleService_PaginationIsStable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	for i := 0; i < 5; i++ {
		f.publish(t, alice, "Post "+string(rune('a'+i)))
	}

	var seen []string
	for offset := 0; offset < 5; offset += 2 {
		page, err := f.articles.List(ctx, "", ListArticlesInput{Limit: "2", Offset: strconv.Itoa(offset)})
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		for _, a := range page.Articles {
			seen = append(seen, a.Article.Slug)
		}
	}
	assert.Equal(t, []string{"post-e", "post-d", "post-c", "post-b", "post-a"}, seen)
}

func TestCommentService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	article := f.publish(t, alice, "Discuss")

	comment, err := f.comments.Add(ctx, bob.ID, article.Article.Slug, AddCommentInput{Body: "nice post"})
	require.NoError(t, err)
	assert.Equal(t, "bob", comment.Author.Username)
	assert.Equal(t, article.Article.Slug, comment.Comment.ArticleSlug)

	_, err = f.comments.Add(ctx, bob.ID, article.Article.Slug, AddCommentInput{Body: " "})
	requireKind(t, err, domain.KindValidation)

	_, err = f.comments.Add(ctx, bob.ID, "missing", AddCommentInput{Body: "hi"})
	requireKind(t, err, domain.KindNotFound)

	id := strconv.FormatInt(comment.Comment.ID, 10)
	requireKind(t, f.comments.Delete(ctx, alice.ID, article.Article.Slug, id), domain.KindForbidden)

	list, err := f.comments.List(ctx, "", article.Article.Slug)
	require.NoError(t, err)
	require.Len(t, list, 1, "a rejected delete leaves the comment in place")

	requireKind(t, f.comments.Delete(ctx, bob.ID, article.Article.Slug, "abc"), domain.KindValidation)
	requireKind(t, f.comments.Delete(ctx, bob.ID, article.Article.Slug, "999"), domain.KindNotFound)

	require.NoError(t, f.comments.Delete(ctx, bob.ID, article.Article.Slug, id))
	list, err = f.comments.List(ctx, "", article.Article.Slug)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTagService_InvalidatedByArticleWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	tags, err := f.tags.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)

	article := f.publish(t, alice, "Tagged", "zig", "go")
	tags, err = f.tags.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "zig"}, tags)

	require.NoError(t, f.articles.Delete(ctx, alice.ID, article.Article.Slug))
	tags, err = f.tags.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("cache down")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}
func (failingStore) Delete(context.Context, string) error { return errors.New("cache down") }
func (failingStore) Close() error                         { return nil }

func TestTagService_CacheFailuresAreLogged(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "tags.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	articles := sqlite.NewArticleRepository(db)
	require.NoError(t, sqlite.NewUserRepository(db).Init(context.Background()))
	require.NoError(t, articles.Init(context.Background()))

	logger, hook := test.NewNullLogger()
	svc := NewTagService(articles, failingStore{}, time.Minute, logger)

	tags, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tags)
	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

// racingTags runs onTags in the middle of every Tags read.
type racingTags struct {
	repository.ArticleRepository
	onTags func()
}

func (r *racingTags) Tags(ctx context.Context) ([]string, error) {
	tags, err := r.ArticleRepository.Tags(ctx)
	r.onTags()
	return tags, err
}

func TestTagService_ReadOverlappingInvalidateIsNotCached(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "tags.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	articles := sqlite.NewArticleRepository(db)
	require.NoError(t, sqlite.NewUserRepository(db).Init(context.Background()))
	require.NoError(t, articles.Init(context.Background()))

	ctx := context.Background()
	store := cache.NewMemory(time.Minute, time.Minute)
	repo := &racingTags{ArticleRepository: articles}
	logger, _ := test.NewNullLogger()
	svc := NewTagService(repo, store, time.Minute, logger)
	repo.onTags = func() { svc.Invalidate(ctx) }

	_, err = svc.List(ctx)
	require.NoError(t, err)

	_, err = store.Get(ctx, tagsCacheKey)
	assert.ErrorIs(t, err, cache.ErrMiss)

	repo.onTags = func() {}
	_, err = svc.List(ctx)
	require.NoError(t, err)
	_, err = store.Get(ctx, tagsCacheKey)
	assert.NoError(t, err)
}
