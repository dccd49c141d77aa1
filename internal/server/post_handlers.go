package server

import (
	"inkwell/internal/models"
	"inkwell/internal/search"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts
// @Summary List or search published posts
// @Description Ranked by relevance when a query is given, newest first otherwise. title wins over author, author over search.
// @Tags posts
// @Produce json
// @Param search query string false "Combined search over title, author and content"
// @Param title query string false "Title search"
// @Param author query string false "Author search"
// @Param tag query string false "Exact tag filter"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size (default 10, max 50)"
// @Success 200 {array} models.Post
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page, limit := pageParams(c)
	posts, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Request: search.Request{
			Search: c.Query("search"),
			Title:  c.Query("title"),
			Author: c.Query("author"),
			Tag:    c.Query("tag"),
			Page:   page,
			Limit:  limit,
		},
		ViewerID: currentUserID(c),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// GetPopularTags handles GET /api/posts/tags/popular
// @Summary Most used tags on published posts
// @Tags posts
// @Produce json
// @Success 200 {array} models.TagCount
// @Router /posts/tags/popular [get]
func (s *Server) GetPopularTags(c *fiber.Ctx) error {
	tags, err := s.postService.PopularTags(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(tags)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{title=string,content=string,tags=[]string,is_published=bool} true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Title       string   `json:"title"`
		Content     string   `json:"content"`
		Tags        []string `json:"tags"`
		IsPublished *bool    `json:"is_published"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:      currentUserID(c),
		Title:       req.Title,
		Content:     req.Content,
		Tags:        req.Tags,
		IsPublished: req.IsPublished,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Description Drafts are visible only to their author.
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Partially update a post
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{title=string,content=string,tags=[]string,is_published=bool} true "Fields to change"
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Title       *string   `json:"title"`
		Content     *string   `json:"content"`
		Tags        *[]string `json:"tags"`
		IsPublished *bool     `json:"is_published"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:      currentUserID(c),
		PostID:      id,
		Title:       req.Title,
		Content:     req.Content,
		Tags:        req.Tags,
		IsPublished: req.IsPublished,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// PublishPost handles POST /api/posts/:id/publish
// @Summary Publish a draft
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Router /posts/{id}/publish [post]
func (s *Server) PublishPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.PublishPost(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{message=string}
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted successfully"})
}

// LikePost handles POST /api/posts/:id/like
// @Summary Like a post
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.LikePost(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// UnlikePost handles DELETE /api/posts/:id/like
// @Summary Remove a like
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Router /posts/{id}/like [delete]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.UnlikePost(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// GetComments handles GET /api/posts/:id/comments
// @Summary List comments, oldest first
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size (default 20)"
// @Success 200 {array} models.Comment
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page, limit := pageParams(c)
	comments, err := s.commentService.ListComments(c.UserContext(), id, currentUserID(c), page, limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Comment on a published post
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{content=string} true "Comment"
// @Success 201 {object} models.Comment
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID:  currentUserID(c),
		PostID:  id,
		Content: req.Content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetFeed handles GET /api/feed
// @Summary Next page of the home feed
// @Description Omit session to start over; pass the returned session_id to continue.
// @Tags feed
// @Security BearerAuth
// @Produce json
// @Param session query string false "Feed session ID"
// @Success 200 {object} feed.Page
// @Router /feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page, err := s.feedService.Page(c.UserContext(), currentUserID(c), c.Query("session"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}
