package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"inkwell/internal/featureflags"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/search"
)

const (
	maxTitleLen     = 255
	maxPostLen      = 50000
	maxTags         = 10
	maxTagLen       = 40
	popularTagLimit = 20
)

type PostService struct {
	postRepo repository.PostRepository
	flags    *featureflags.Manager
	maxLimit int
}

type CreatePostInput struct {
	UserID      uint
	Title       string
	Content     string
	Tags        []string
	IsPublished *bool
}

// UpdatePostInput is a partial update; nil fields are left alone.
type UpdatePostInput struct {
	UserID      uint
	PostID      uint
	Title       *string
	Content     *string
	Tags        *[]string
	IsPublished *bool
}

type ListPostsInput struct {
	search.Request
	ViewerID uint
}

func NewPostService(postRepo repository.PostRepository, flags *featureflags.Manager, maxLimit int) *PostService {
	return &PostService{postRepo: postRepo, flags: flags, maxLimit: maxLimit}
}

// ListPosts runs the ranked search over published posts.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	q := search.Build(in.Request, search.Options{
		FullText: s.flags.EnabledOr(featureflags.SearchFullText, in.ViewerID, true),
		MaxLimit: s.maxLimit,
	})
	observability.SearchQueries.WithLabelValues(string(q.Intent)).Inc()
	return s.postRepo.Search(ctx, q, in.ViewerID)
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	if title == "" {
		return nil, models.NewValidationError("Title is required")
	}
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if err := validatePostText(title, content); err != nil {
		return nil, err
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		UserID:      in.UserID,
		Title:       title,
		Content:     content,
		Tags:        tags,
		IsPublished: in.IsPublished == nil || *in.IsPublished,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

// GetPost returns a post the viewer may see. Drafts of other authors look missing.
func (s *PostService) GetPost(ctx context.Context, postID, viewerID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}
	if !post.VisibleTo(viewerID) {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.ownedPost(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, models.NewValidationError("Title cannot be empty")
		}
		post.Title = title
	}
	if in.Content != nil {
		content := strings.TrimSpace(*in.Content)
		if content == "" {
			return nil, models.NewValidationError("Content cannot be empty")
		}
		post.Content = content
	}
	if err := validatePostText(post.Title, post.Content); err != nil {
		return nil, err
	}
	if in.Tags != nil {
		tags, err := normalizeTags(*in.Tags)
		if err != nil {
			return nil, err
		}
		post.Tags = tags
	}
	if in.IsPublished != nil {
		if post.IsPublished && !*in.IsPublished {
			return nil, models.NewValidationError("Published posts cannot be unpublished")
		}
		post.IsPublished = *in.IsPublished
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

// PublishPost flips a draft to published. Publishing twice is a no-op.
func (s *PostService) PublishPost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	published := true
	return s.UpdatePost(ctx, UpdatePostInput{UserID: userID, PostID: postID, IsPublished: &published})
}

func (s *PostService) DeletePost(ctx context.Context, userID, postID uint) error {
	if _, err := s.ownedPost(ctx, postID, userID); err != nil {
		return err
	}
	return s.postRepo.Delete(ctx, postID)
}

// LikePost records a like. Repeating it changes nothing.
func (s *PostService) LikePost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	if _, err := s.GetPost(ctx, postID, userID); err != nil {
		return nil, err
	}
	if err := s.postRepo.Like(ctx, userID, postID); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, postID, userID)
}

// UnlikePost removes a like. Unliking a post that was not liked is not an error.
func (s *PostService) UnlikePost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	if _, err := s.GetPost(ctx, postID, userID); err != nil {
		return nil, err
	}
	if err := s.postRepo.Unlike(ctx, userID, postID); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, postID, userID)
}

func (s *PostService) PopularTags(ctx context.Context) ([]models.TagCount, error) {
	return s.postRepo.PopularTags(ctx, popularTagLimit)
}

// ListByAuthor pages an author's posts. Drafts are included only for the author.
func (s *PostService) ListByAuthor(ctx context.Context, authorID, viewerID uint, page, limit int) ([]*models.Post, error) {
	_, limit, offset := search.Paginate(page, limit, s.maxLimit)
	return s.postRepo.ListByUser(ctx, authorID, authorID == viewerID, limit, offset, viewerID)
}

func (s *PostService) ownedPost(ctx context.Context, postID, userID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		if !post.IsPublished {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, models.NewForbiddenError("You can only modify your own posts")
	}
	return post, nil
}

func validatePostText(title, content string) error {
	if utf8.RuneCountInString(title) > maxTitleLen {
		return models.NewValidationError("Title too long (max 255 characters)")
	}
	if utf8.RuneCountInString(content) > maxPostLen {
		return models.NewValidationError("Content too long (max 50000 characters)")
	}
	return nil
}

func normalizeTags(raw []string) (models.Tags, error) {
	tags := models.NormalizeTags(raw)
	if len(tags) > maxTags {
		return nil, models.NewValidationError("Too many tags (max 10)")
	}
	for _, t := range tags {
		if utf8.RuneCountInString(t) > maxTagLen {
			return nil, models.NewValidationError("Tag too long (max 40 characters)")
		}
	}
	if tags == nil {
		tags = models.Tags{}
	}
	return tags, nil
}
