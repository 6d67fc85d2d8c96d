package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"inventory/internal/database"
	"inventory/internal/models"
	"inventory/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

type repoSet struct {
	users    repositories.UserRepository
	products repositories.ProductRepository
}

func implementations(t *testing.T) map[string]func() repoSet {
	return map[string]func() repoSet{
		"gorm": func() repoSet {
			db := newTestDB(t)
			return repoSet{
				users:    repositories.NewGORMUserRepository(db),
				products: repositories.NewGORMProductRepository(db),
			}
		},
		"memory": func() repoSet {
			return repoSet{
				users:    repositories.NewMemoryUserRepository(),
				products: repositories.NewMemoryProductRepository(),
			}
		},
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	for name, build := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			repo := build().users

			user := &models.User{Name: "Ada", Email: "ada@x.com", Password: "hash", Photo: models.DefaultPhoto}
			require.NoError(t, repo.Create(ctx, user))
			assert.NotEmpty(t, user.ID)

			dup := &models.User{Name: "Other", Email: "ada@x.com", Password: "hash"}
			err := repo.Create(ctx, dup)
			assert.ErrorIs(t, err, repositories.ErrDuplicate)

			found, err := repo.GetByEmail(ctx, "ada@x.com")
			require.NoError(t, err)
			assert.Equal(t, user.ID, found.ID)

			_, err = repo.GetByEmail(ctx, "nobody@x.com")
			assert.ErrorIs(t, err, repositories.ErrNotFound)

			found.Name = "Ada L."
			found.Bio = "math"
			found.Email = "changed@x.com"
			require.NoError(t, repo.Update(ctx, found))

			reloaded, err := repo.GetByID(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, "Ada L.", reloaded.Name)
			assert.Equal(t, "math", reloaded.Bio)
			assert.Equal(t, "ada@x.com", reloaded.Email)

			_, err = repo.GetByID(ctx, "missing")
			assert.ErrorIs(t, err, repositories.ErrNotFound)

			err = repo.Update(ctx, &models.User{ID: "missing", Name: "x"})
			assert.ErrorIs(t, err, repositories.ErrNotFound)
		})
	}
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	for name, build := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			repo := build().products

			empty, err := repo.ListByUser(ctx, "owner-1")
			require.NoError(t, err)
			assert.NotNil(t, empty)
			assert.Empty(t, empty)

			first := &models.Product{UserID: "owner-1", Name: "Widget", SKU: "W1", Category: "tools", Quantity: 5, Price: 9.99, Description: "a widget"}
			require.NoError(t, repo.Create(ctx, first))
			time.Sleep(5 * time.Millisecond)
			second := &models.Product{
				UserID: "owner-1", Name: "Gadget", SKU: "G1", Category: "tools", Quantity: 1, Price: 1, Description: "a gadget",
				Image: models.Image{FileName: "g.png", FilePath: "/uploads/g.png", FileType: "image/png", FileSize: "1.5 KB"},
			}
			require.NoError(t, repo.Create(ctx, second))
			other := &models.Product{UserID: "owner-2", Name: "Other", SKU: "O1", Category: "misc", Quantity: 2, Price: 3, Description: "other"}
			require.NoError(t, repo.Create(ctx, other))

			list, err := repo.ListByUser(ctx, "owner-1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, second.ID, list[0].ID)
			assert.Equal(t, first.ID, list[1].ID)
			assert.Equal(t, second.Image, list[0].Image)

			got, err := repo.GetByID(ctx, first.ID)
			require.NoError(t, err)
			assert.True(t, got.Image.Empty())

			got.Quantity = 0
			got.Name = "Widget v2"
			got.UserID = "owner-2"
			require.NoError(t, repo.Update(ctx, got))

			reloaded, err := repo.GetByID(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, reloaded.Quantity)
			assert.Equal(t, "Widget v2", reloaded.Name)
			assert.Equal(t, "owner-1", reloaded.UserID)

			require.NoError(t, repo.Delete(ctx, first.ID))
			_, err = repo.GetByID(ctx, first.ID)
			assert.ErrorIs(t, err, repositories.ErrNotFound)
			assert.ErrorIs(t, repo.Delete(ctx, first.ID), repositories.ErrNotFound)
			assert.ErrorIs(t, repo.Update(ctx, &models.Product{ID: first.ID}), repositories.ErrNotFound)
		})
	}
}
