package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/todo-api/internal/domain"
)

// runTodoRepositoryContract exercises the behaviour every backend must share.
// newRepo must return a repository over an empty store.
func runTodoRepositoryContract(t *testing.T, newRepo func(t *testing.T) TodoRepository) {
	t.Helper()
	ctx := context.Background()

	newTodo := func(title string, created time.Time) *domain.Todo {
		return &domain.Todo{Title: title, CreatedAt: created, UpdatedAt: created}
	}

	t.Run("CreateAssignsUniqueIDs", func(t *testing.T) {
		repo := newRepo(t)
		now := domain.Now()

		seen := map[uint64]bool{}
		for _, title := range []string{"a", "b", "c"} {
			todo := newTodo(title, now)
			require.NoError(t, repo.Create(ctx, todo))
			assert.NotZero(t, todo.ID)
			assert.False(t, seen[todo.ID], "id %d handed out twice", todo.ID)
			seen[todo.ID] = true
		}
	})

	t.Run("FindByIDRoundTrip", func(t *testing.T) {
		repo := newRepo(t)
		now := domain.Now()
		todo := &domain.Todo{
			Title:       "Buy milk",
			Description: "2 liters",
			Completed:   true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		require.NoError(t, repo.Create(ctx, todo))

		found, err := repo.FindByID(ctx, todo.ID)
		require.NoError(t, err)
		assert.Equal(t, todo.ID, found.ID)
		assert.Equal(t, "Buy milk", found.Title)
		assert.Equal(t, "2 liters", found.Description)
		assert.True(t, found.Completed)
		assert.True(t, now.Equal(found.CreatedAt), "created_at %v != %v", found.CreatedAt, now)
		assert.True(t, now.Equal(found.UpdatedAt), "updated_at %v != %v", found.UpdatedAt, now)
	})

	t.Run("FindByIDMissing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.FindByID(ctx, 999)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("GetAllEmpty", func(t *testing.T) {
		repo := newRepo(t)
		todos, err := repo.GetAll(ctx, domain.SortByID)
		require.NoError(t, err)
		assert.NotNil(t, todos)
		assert.Empty(t, todos)
	})

	t.Run("GetAllOrders", func(t *testing.T) {
		repo := newRepo(t)
		base := domain.Now()

		first := newTodo("first", base.Add(-2*time.Hour))
		second := newTodo("second", base.Add(-time.Hour))
		second.Completed = true
		third := newTodo("third", base)
		for _, todo := range []*domain.Todo{first, second, third} {
			require.NoError(t, repo.Create(ctx, todo))
		}

		byID, err := repo.GetAll(ctx, domain.SortByID)
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second", "third"}, titles(byID))

		byDate, err := repo.GetAll(ctx, domain.SortByDate)
		require.NoError(t, err)
		assert.Equal(t, []string{"third", "second", "first"}, titles(byDate))

		byCompleted, err := repo.GetAll(ctx, domain.SortByCompleted)
		require.NoError(t, err)
		assert.Equal(t, []string{"second", "first", "third"}, titles(byCompleted))
	})

	t.Run("Update", func(t *testing.T) {
		repo := newRepo(t)
		now := domain.Now()
		todo := newTodo("Buy milk", now)
		require.NoError(t, repo.Create(ctx, todo))

		later := now.Add(time.Minute)
		todo.Completed = true
		todo.Description = "oat"
		todo.UpdatedAt = later
		require.NoError(t, repo.Update(ctx, todo))

		found, err := repo.FindByID(ctx, todo.ID)
		require.NoError(t, err)
		assert.True(t, found.Completed)
		assert.Equal(t, "oat", found.Description)
		assert.True(t, now.Equal(found.CreatedAt))
		assert.True(t, later.Equal(found.UpdatedAt))
	})

	t.Run("UpdateMissingCreatesNothing", func(t *testing.T) {
		repo := newRepo(t)
		now := domain.Now()
		ghost := newTodo("ghost", now)
		ghost.ID = 4242

		err := repo.Update(ctx, ghost)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		todos, err := repo.GetAll(ctx, domain.SortByID)
		require.NoError(t, err)
		assert.Empty(t, todos)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newRepo(t)
		now := domain.Now()
		a, b, c := newTodo("A", now), newTodo("B", now), newTodo("C", now)
		for _, todo := range []*domain.Todo{a, b, c} {
			require.NoError(t, repo.Create(ctx, todo))
		}

		require.NoError(t, repo.Delete(ctx, b.ID))

		_, err := repo.FindByID(ctx, b.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, b.ID), domain.ErrNotFound)

		todos, err := repo.GetAll(ctx, domain.SortByID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"A", "C"}, titles(todos))
	})

	t.Run("IDsNotReusedAfterDelete", func(t *testing.T) {
		repo := newRepo(t)
		now := domain.Now()
		first := newTodo("first", now)
		require.NoError(t, repo.Create(ctx, first))
		require.NoError(t, repo.Delete(ctx, first.ID))

		second := newTodo("second", now)
		require.NoError(t, repo.Create(ctx, second))
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("ConcurrentDeletes", func(t *testing.T) {
		repo := newRepo(t)
		todo := newTodo("once", domain.Now())
		require.NoError(t, repo.Create(ctx, todo))

		const workers = 8
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = repo.Delete(ctx, todo.ID)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrNotFound)
		}
		assert.Equal(t, 1, succeeded, "exactly one delete removes the record")
	})

	t.Run("UpdateRacingDelete", func(t *testing.T) {
		repo := newRepo(t)
		now := domain.Now()
		todo := newTodo("racing", now)
		require.NoError(t, repo.Create(ctx, todo))

		var wg sync.WaitGroup
		var deleteErr, updateErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			deleteErr = repo.Delete(ctx, todo.ID)
		}()
		go func() {
			defer wg.Done()
			changed := *todo
			changed.Completed = true
			changed.UpdatedAt = now.Add(time.Second)
			updateErr = repo.Update(ctx, &changed)
		}()
		wg.Wait()

		require.NoError(t, deleteErr)
		if updateErr != nil {
			assert.ErrorIs(t, updateErr, domain.ErrNotFound)
		}

		late := *todo
		late.Title = "late"
		assert.ErrorIs(t, repo.Update(ctx, &late), domain.ErrNotFound)

		todos, err := repo.GetAll(ctx, domain.SortByID)
		require.NoError(t, err)
		assert.Empty(t, todos, "an update never brings a deleted record back")
	})
}

func titles(todos []domain.Todo) []string {
	out := make([]string, 0, len(todos))
	for _, todo := range todos {
		out = append(out, todo.Title)
	}
	return out
}
