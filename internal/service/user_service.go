package service

import (
	"context"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"github.com/samber/lo"
)

const (
	defaultUserSearchLimit = 20
	defaultFollowLimit     = 50
	maxFollowLimit         = 100
	maxDisplayNameLen      = 100
	maxProfileImageLen     = 500
)

type UserService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	postRepo   repository.PostRepository
}

// UpdateProfileInput is a partial update; nil fields are left alone.
type UpdateProfileInput struct {
	UserID          uint
	DisplayName     *string
	Bio             *string
	ThemePreference *string
	ProfileImage    *string
}

func NewUserService(userRepo repository.UserRepository, followRepo repository.FollowRepository, postRepo repository.PostRepository) *UserService {
	return &UserService{
		userRepo:   userRepo,
		followRepo: followRepo,
		postRepo:   postRepo,
	}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.userRepo.GetByUsername(ctx, username)
}

// Profile loads a user page by username with follow aggregates for viewerID.
func (s *UserService) Profile(ctx context.Context, username string, viewerID uint) (*models.UserProfile, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	followers, following, err := s.followRepo.Counts(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	posts, err := s.postRepo.CountPublishedByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	isFollowing := false
	if viewerID != 0 && viewerID != user.ID {
		if isFollowing, err = s.followRepo.IsFollowing(ctx, viewerID, user.ID); err != nil {
			return nil, err
		}
	}

	return &models.UserProfile{
		ID:              user.ID,
		Username:        user.Username,
		DisplayName:     user.DisplayName,
		ProfileImage:    user.ProfileImage,
		Bio:             user.Bio,
		ThemePreference: user.ThemePreference,
		CreatedAt:       user.CreatedAt,
		FollowersCount:  followers,
		FollowingCount:  following,
		PostsCount:      posts,
		IsFollowing:     isFollowing,
	}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if len([]rune(name)) > maxDisplayNameLen {
			return nil, models.NewValidationError("Display name too long (max 100 characters)")
		}
		user.DisplayName = name
	}
	if in.Bio != nil {
		if err := validation.ValidateBio(*in.Bio); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Bio = *in.Bio
	}
	if in.ThemePreference != nil {
		theme := *in.ThemePreference
		if theme != models.ThemeLight && theme != models.ThemeDark {
			return nil, models.NewValidationError("Theme must be light or dark")
		}
		user.ThemePreference = theme
	}
	if in.ProfileImage != nil {
		if len(*in.ProfileImage) > maxProfileImageLen {
			return nil, models.NewValidationError("Profile image URL too long")
		}
		user.ProfileImage = *in.ProfileImage
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Follow makes followerID follow targetID. Following twice is a no-op.
func (s *UserService) Follow(ctx context.Context, followerID, targetID uint) error {
	if followerID == targetID {
		return models.NewValidationError("Cannot follow yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		return err
	}
	return s.followRepo.Follow(ctx, followerID, targetID)
}

func (s *UserService) Unfollow(ctx context.Context, followerID, targetID uint) error {
	return s.followRepo.Unfollow(ctx, followerID, targetID)
}

func (s *UserService) Followers(ctx context.Context, username string, page, limit int) ([]models.PublicProfile, error) {
	return s.edges(ctx, username, page, limit, s.followRepo.Followers)
}

func (s *UserService) Following(ctx context.Context, username string, page, limit int) ([]models.PublicProfile, error) {
	return s.edges(ctx, username, page, limit, s.followRepo.Following)
}

func (s *UserService) edges(
	ctx context.Context,
	username string,
	page, limit int,
	list func(context.Context, uint, int, int) ([]models.User, error),
) ([]models.PublicProfile, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultFollowLimit
	}
	if limit > maxFollowLimit {
		limit = maxFollowLimit
	}
	users, err := list(ctx, user.ID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return publicProfiles(users), nil
}

// Search finds users by username or display name.
func (s *UserService) Search(ctx context.Context, query string) ([]models.PublicProfile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.PublicProfile{}, nil
	}
	users, err := s.userRepo.Search(ctx, query, defaultUserSearchLimit)
	if err != nil {
		return nil, err
	}
	return publicProfiles(users), nil
}

func publicProfiles(users []models.User) []models.PublicProfile {
	return lo.Map(users, func(u models.User, _ int) models.PublicProfile {
		return u.Public()
	})
}
