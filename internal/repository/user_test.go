package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"plume/internal/models"
	"plume/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	query := regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)

	tests := []struct {
		name          string
		userID        uint
		mockBehavior  func()
		expectedUser  *models.User
		expectedCode  string
		expectedError bool
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "username", "email", "is_staff"}).
					AddRow(1, "alice", "alice@example.com", true)
				mock.ExpectQuery(query).WithArgs(1, 1).WillReturnRows(rows)
			},
			expectedUser: &models.User{ID: 1, Username: "alice", Email: "alice@example.com", IsStaff: true},
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(query).WithArgs(99, 1).WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedError: true,
			expectedCode:  models.CodeNotFound,
		},
		{
			name:   "Driver Error",
			userID: 2,
			mockBehavior: func() {
				mock.ExpectQuery(query).WithArgs(2, 1).WillReturnError(errors.New("connection reset"))
			},
			expectedError: true,
			expectedCode:  models.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.expectedError {
				var appErr *models.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.expectedCode, appErr.Code)
			} else if assert.NotNil(t, user) {
				assert.Equal(t, tt.expectedUser.Username, user.Username)
				assert.True(t, user.IsStaff)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByEmail_Missing(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1 ORDER BY "users"."id" LIMIT $2`)).
		WithArgs("nobody@example.com", 1).
		WillReturnError(gorm.ErrRecordNotFound)

	user, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_PostgresUniqueViolation(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		field      string
		message    string
	}{
		{"username", "idx_users_username", "username", MsgUsernameTaken},
		{"email", "idx_users_email", "email", MsgEmailTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewUserRepository(db)

			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})
			mock.ExpectRollback()

			err := repo.Create(context.Background(), &models.User{Username: "alice", Email: "alice@example.com", IsActive: true})

			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, models.CodeValidation, appErr.Code)
			assert.Equal(t, tt.message, appErr.Fields[tt.field])
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_SQLite(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	alice := &models.User{Username: "alice", Email: "alice@example.com", Password: "x", IsActive: true}
	require.NoError(t, repo.Create(ctx, alice))
	assert.NotZero(t, alice.ID)

	t.Run("duplicate email maps to field error", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Username: "alice2", Email: "alice@example.com", Password: "x", IsActive: true})
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, MsgEmailTaken, appErr.Fields["email"])
	})

	t.Run("duplicate username maps to field error", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Username: "alice", Email: "other@example.com", Password: "x", IsActive: true})
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, MsgUsernameTaken, appErr.Fields["username"])
	})

	t.Run("lookups", func(t *testing.T) {
		byName, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, byName.ID)

		missing, err := repo.GetByUsername(ctx, "ghost")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("password and last login", func(t *testing.T) {
		require.NoError(t, repo.UpdatePassword(ctx, alice.ID, "new-hash"))
		now := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, repo.UpdateLastLogin(ctx, alice.ID, now))

		got, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-hash", got.Password)
		require.NotNil(t, got.LastLogin)
		assert.True(t, now.Equal(*got.LastLogin))
	})

	t.Run("roles", func(t *testing.T) {
		require.NoError(t, repo.SetRoles(ctx, alice.ID, false, true))
		staff, err := repo.ListStaff(ctx)
		require.NoError(t, err)
		require.Len(t, staff, 1)
		assert.True(t, staff[0].IsStaff)
		assert.True(t, staff[0].IsSuperuser)

		require.NoError(t, repo.SetRoles(ctx, alice.ID, false, false))
		staff, err = repo.ListStaff(ctx)
		require.NoError(t, err)
		assert.Empty(t, staff)

		err = repo.SetRoles(ctx, 9999, true, false)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.CodeNotFound, appErr.Code)
	})
}
