package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"inkwell/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		wantCode     string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}).AddRow(1, "testuser", "test@example.com"))
			},
		},
		{
			name:   "Not Found",
			userID: 2,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
					WithArgs(2, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			wantCode: models.CodeNotFound,
		},
		{
			name:   "Database Error",
			userID: 3,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
					WithArgs(3, 1).
					WillReturnError(errors.New("connection timeout"))
			},
			wantCode: models.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)
			if tt.wantCode != "" {
				assert.Nil(t, user)
				assert.Equal(t, tt.wantCode, models.ErrorCode(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, "testuser", user.Username)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		email := "test@example.com"
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
			WithArgs(email, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(1, email))

		user, err := repo.GetByEmail(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, email, user.Email)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		email := "ghost@example.com"
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1`)).
			WithArgs(email, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		user, err := repo.GetByEmail(ctx, email)
		assert.NoError(t, err)
		assert.Nil(t, user)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Username: "dup", Email: "dup@example.com", ThemePreference: models.ThemeLight}))
	err := repo.Create(ctx, &models.User{Username: "dup", Email: "other@example.com", ThemePreference: models.ThemeLight})
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	taken, err := repo.UsernameTaken(ctx, "dup")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestUserRepository_SearchAndLookup(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	ann := createUser(t, db, "annie")
	createUser(t, db, "bernard")
	joe := createUser(t, db, "joe_ann")

	users, err := repo.Search(ctx, "ANN", 20)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "annie", users[0].Username)

	users, err = repo.Search(ctx, "%", 20)
	require.NoError(t, err)
	assert.Empty(t, users, "wildcards match literally")

	byName, err := repo.GetByUsername(ctx, "annie")
	require.NoError(t, err)
	assert.Equal(t, ann.ID, byName.ID)

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.True(t, models.IsNotFound(err))

	many, err := repo.GetByIDs(ctx, []uint{ann.ID, joe.ID})
	require.NoError(t, err)
	assert.Len(t, many, 2)
}
