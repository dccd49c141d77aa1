package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

// GetMyProfile handles GET /api/users/me
// @Summary Current user
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.User
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/profile
// @Summary Update the current user's profile
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{display_name=string,bio=string,theme_preference=string,profile_image=string} true "Fields to change"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/profile [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		DisplayName     *string `json:"display_name"`
		Bio             *string `json:"bio"`
		ThemePreference *string `json:"theme_preference"`
		ProfileImage    *string `json:"profile_image"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:          currentUserID(c),
		DisplayName:     req.DisplayName,
		Bio:             req.Bio,
		ThemePreference: req.ThemePreference,
		ProfileImage:    req.ProfileImage,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// GetUserProfile handles GET /api/users/profile/:username
// @Summary Public profile with follow counts
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} models.UserProfile
// @Failure 404 {object} models.ErrorResponse
// @Router /users/profile/{username} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	profile, err := s.userService.Profile(c.UserContext(), c.Params("username"), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// SearchUsers handles GET /api/users/search?q=
// @Summary Find users by username or display name
// @Tags users
// @Produce json
// @Param q query string true "Search text"
// @Success 200 {array} models.PublicProfile
// @Router /users/search [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	users, err := s.userService.Search(c.UserContext(), c.Query("q"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(users)
}

// FollowUser handles POST /api/users/follow/:userId
// @Summary Follow a user
// @Tags users
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} object{following=bool}
// @Router /users/follow/{userId} [post]
func (s *Server) FollowUser(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	if err := s.userService.Follow(c.UserContext(), currentUserID(c), targetID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"following": true})
}

// UnfollowUser handles DELETE /api/users/follow/:userId
// @Summary Unfollow a user
// @Tags users
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} object{following=bool}
// @Router /users/follow/{userId} [delete]
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	if err := s.userService.Unfollow(c.UserContext(), currentUserID(c), targetID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"following": false})
}

// GetUserPosts handles GET /api/users/:username/posts
// @Summary An author's posts
// @Description Published posts; the author also sees their drafts.
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {array} models.Post
// @Router /users/{username}/posts [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	ctx := c.UserContext()
	author, err := s.userService.GetUserByUsername(ctx, c.Params("username"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	page, limit := pageParams(c)
	posts, err := s.postService.ListByAuthor(ctx, author.ID, currentUserID(c), page, limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// GetFollowers handles GET /api/users/:username/followers
// @Summary Followers of a user
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {array} models.PublicProfile
// @Router /users/{username}/followers [get]
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	page, limit := pageParams(c)
	users, err := s.userService.Followers(c.UserContext(), c.Params("username"), page, limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(users)
}

// GetFollowing handles GET /api/users/:username/following
// @Summary Users a user follows
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {array} models.PublicProfile
// @Router /users/{username}/following [get]
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	page, limit := pageParams(c)
	users, err := s.userService.Following(c.UserContext(), c.Params("username"), page, limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(users)
}

// GetOnlineUsers handles GET /api/users/online
// @Summary IDs of users with a live connection on this node
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{user_ids=[]int}
// @Router /users/online [get]
func (s *Server) GetOnlineUsers(c *fiber.Ctx) error {
	me := currentUserID(c)
	ids := lo.Filter(s.presence.Online(), func(id uint, _ int) bool { return id != me })
	return c.JSON(fiber.Map{"user_ids": ids})
}
