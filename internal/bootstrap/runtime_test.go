package bootstrap

import (
	"context"
	"testing"

	"plume/internal/config"
	"plume/internal/models"
	"plume/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rootConfig() *config.Config {
	return &config.Config{
		Env:                    "development",
		DevBootstrapRoot:       true,
		DevRootUsername:        "root",
		DevRootEmail:           "Root@Example.com",
		DevRootPassword:        "Password123!",
		PasswordHashIterations: 1000,
	}
}

func TestEnsureDevRootAdmin_Creates(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	require.NoError(t, ensureDevRootAdmin(context.Background(), rootConfig(), db))
	// Running twice keeps a single root.
	require.NoError(t, ensureDevRootAdmin(context.Background(), rootConfig(), db))

	var users []models.User
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "root@example.com", users[0].Email)
	assert.True(t, users[0].IsStaff)
	assert.True(t, users[0].IsSuperuser)
}

func TestEnsureDevRootAdmin_PromotesExisting(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	existing := testutil.CreateUser(t, db, "root")

	require.NoError(t, ensureDevRootAdmin(context.Background(), rootConfig(), db))

	var root models.User
	require.NoError(t, db.First(&root, existing.ID).Error)
	assert.True(t, root.IsSuperuser)
}

func TestEnsureDevRootAdmin_Guards(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	prod := rootConfig()
	prod.Env = "production"
	require.NoError(t, ensureDevRootAdmin(context.Background(), prod, db))

	disabled := rootConfig()
	disabled.DevBootstrapRoot = false
	require.NoError(t, ensureDevRootAdmin(context.Background(), disabled, db))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)

	noPassword := rootConfig()
	noPassword.DevRootPassword = ""
	assert.Error(t, ensureDevRootAdmin(context.Background(), noPassword, db))
}
