package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore_SQLite(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "history.db"))
	t.Cleanup(func() { _ = s.Close() })
	require.True(t, s.Persistent())

	ctx := context.Background()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 3; i++ {
		s.Save(ctx, Exchange{
			ID:        fmt.Sprintf("id-%d", i),
			ChatID:    "42",
			UserText:  fmt.Sprintf("message %d", i),
			Decision:  "call",
			APIStatus: 201,
			Reply:     "done",
			Outcome:   "replied",
			CreatedAt: created.Add(time.Duration(i) * time.Minute),
		})
	}
	s.Save(ctx, Exchange{ID: "other", ChatID: "7", Outcome: "apology"})

	all, err := s.List(ctx, "42", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "id-0", all[0].ID)
	require.Equal(t, "message 2", all[2].UserText)
	require.Equal(t, 201, all[1].APIStatus)
	require.True(t, created.Equal(all[0].CreatedAt))

	last, err := s.List(ctx, "42", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"id-1", "id-2"}, []string{last[0].ID, last[1].ID})

	none, err := s.List(ctx, "missing", 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestStore_FallbackWhenPathUnusable(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "no", "such", "dir", "history.db"))
	require.False(t, s.Persistent())

	ctx := context.Background()
	s.Save(ctx, Exchange{ID: "a", ChatID: "1", Outcome: "replied"})
	s.Save(ctx, Exchange{ID: "b", ChatID: "1", Outcome: "apology"})

	out, err := s.List(ctx, "1", 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "b", out[0].ID)
	require.False(t, out[0].CreatedAt.IsZero())
	require.NoError(t, s.Close())
}
