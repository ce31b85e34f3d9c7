package gormdb

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	domain "university-user-service/internal/domain/user"
	pkgerrors "university-user-service/pkg/errors"
	"university-user-service/pkg/idx"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func setupRepo(t *testing.T) *UserRepo {
	return NewUserRepo(setupTestDB(t), zaptest.NewLogger(t))
}

func seed(t *testing.T, repo *UserRepo, users ...domain.User) []string {
	t.Helper()
	ids := make([]string, len(users))
	for i := range users {
		u := users[i]
		id, err := repo.Create(context.Background(), &u)
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func TestUserRepo_CreateAndGet(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	u := &domain.User{Name: "Ahmed", Email: "ahmed@uni.edu", PasswordHash: "hash", Avatar: "a.png"}
	id, err := repo.Create(ctx, u)
	require.NoError(t, err)
	assert.True(t, idx.Valid(id))
	assert.Equal(t, id, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ahmed", got.Name)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Equal(t, domain.RoleUser, got.Role, "role defaults to user")
	assert.Equal(t, "a.png", got.Avatar)

	byEmail, err := repo.GetByEmail(ctx, " AHMED@uni.edu ")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, id, byEmail.ID)

	missing, err := repo.GetByEmail(ctx, "ghost@uni.edu")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = repo.GetByID(ctx, idx.New())
	assert.Equal(t, pkgerrors.KindNotFound, pkgerrors.KindOf(err))
}

func TestUserRepo_Create_DuplicateEmail(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	seed(t, repo, domain.User{Name: "A", Email: "a@uni.edu", PasswordHash: "h1"})

	_, err := repo.Create(ctx, &domain.User{Name: "B", Email: "a@uni.edu", PasswordHash: "h2"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.KindConflict, pkgerrors.KindOf(err))

	got, err := repo.GetByEmail(ctx, "a@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)
	assert.Equal(t, "h1", got.PasswordHash)
}

func TestUserRepo_Create_ConcurrentDuplicates(t *testing.T) {
	repo := setupRepo(t)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Create(context.Background(), &domain.User{Name: "X", Email: "race@uni.edu", PasswordHash: "h"})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
		} else {
			assert.Equal(t, pkgerrors.KindConflict, pkgerrors.KindOf(err))
		}
	}
	assert.Equal(t, 1, created)
}

func TestUserRepo_Update(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	ids := seed(t, repo,
		domain.User{Name: "A", Email: "a@uni.edu", PasswordHash: "h1", Avatar: "a.png"},
		domain.User{Name: "B", Email: "b@uni.edu", PasswordHash: "h2"},
	)

	before, err := repo.GetByID(ctx, ids[0])
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, repo.Update(ctx, &domain.User{ID: ids[0], Name: "A2", Role: domain.RoleManager}))

	after, err := repo.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "A2", after.Name)
	assert.Equal(t, domain.RoleManager, after.Role)
	assert.Equal(t, "a@uni.edu", after.Email, "empty fields are left unchanged")
	assert.Equal(t, "h1", after.PasswordHash)
	assert.Equal(t, "a.png", after.Avatar)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

	require.NoError(t, repo.Update(ctx, &domain.User{ID: ids[0], PasswordHash: "h3"}))
	after, err = repo.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "h3", after.PasswordHash)

	err = repo.Update(ctx, &domain.User{ID: ids[0], Email: "b@uni.edu"})
	assert.Equal(t, pkgerrors.KindConflict, pkgerrors.KindOf(err))

	err = repo.Update(ctx, &domain.User{ID: idx.New(), Name: "ghost"})
	assert.Equal(t, pkgerrors.KindNotFound, pkgerrors.KindOf(err))
}

func TestUserRepo_Delete(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	ids := seed(t, repo, domain.User{Name: "A", Email: "a@uni.edu", PasswordHash: "h"})

	require.NoError(t, repo.Delete(ctx, ids[0]))

	_, err := repo.GetByID(ctx, ids[0])
	assert.Equal(t, pkgerrors.KindNotFound, pkgerrors.KindOf(err))

	err = repo.Delete(ctx, ids[0])
	assert.Equal(t, pkgerrors.KindNotFound, pkgerrors.KindOf(err))
}

func TestUserRepo_List_Pagination(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	var users []domain.User
	for i := 0; i < 25; i++ {
		users = append(users, domain.User{Name: fmt.Sprintf("Student %02d", i), Email: fmt.Sprintf("s%02d@uni.edu", i), PasswordHash: "h"})
	}
	ids := seed(t, repo, users...)

	page, total, err := repo.List(ctx, "", 3, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	require.Len(t, page, 5)
	assert.Equal(t, ids[20], page[0].ID, "ordered by creation")

	page, total, err = repo.List(ctx, "", 4, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	assert.Empty(t, page)
	assert.NotNil(t, page)
}

func TestUserRepo_List_Search(t *testing.T) {
	repo := setupRepo(t)
	seed(t, repo,
		domain.User{Name: "John Doe", Email: "john@example.com", PasswordHash: "h"},
		domain.User{Name: "jane smith", Email: "jane@example.com", PasswordHash: "h"},
		domain.User{Name: "ADMIN User", Email: "admin@example.com", PasswordHash: "h"},
		domain.User{Name: "John%Test", Email: "percent@example.com", PasswordHash: "h"},
		domain.User{Name: "Jane_Test", Email: "underscore@example.com", PasswordHash: "h"},
	)

	tests := []struct {
		name  string
		query string
		want  int64
	}{
		{"empty matches all", "", 5},
		{"lowercase", "john", 2},
		{"uppercase", "JOHN", 2},
		{"mixed case name or email", "Admin", 1},
		{"email domain", "example.com", 5},
		{"literal percent", "john%", 1},
		{"literal underscore", "e_t", 1},
		{"no match", "zzz", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, total, err := repo.List(context.Background(), tt.query, 1, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.want, total)
			assert.Len(t, users, int(tt.want))
		})
	}
}
