package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *EventsRepo {
	t.Helper()

	db, err := NewDB(context.Background(), filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewEventsRepo(db)
}

func TestEventsRepo_AppendAndRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "local", KindSessionStart, ""))
	require.NoError(t, repo.Append(ctx, "local", KindUser, "/status"))
	require.NoError(t, repo.Append(ctx, "local", KindReply, "CPU cores: 8"))
	require.NoError(t, repo.Append(ctx, "local", KindUser, "/time"))

	tests := []struct {
		name  string
		term  string
		limit int
		want  []string
	}{
		{
			name:  "term match",
			term:  "/status",
			limit: 5,
			want:  []string{"user: /status"},
		},
		{
			name:  "empty term matches everything",
			term:  "",
			limit: 10,
			want: []string{
				"session_start: ",
				"user: /status",
				"reply: CPU cores: 8",
				"user: /time",
			},
		},
		{
			name:  "limit keeps newest",
			term:  "",
			limit: 2,
			want:  []string{"reply: CPU cores: 8", "user: /time"},
		},
		{
			name:  "no match",
			term:  "resonance",
			limit: 5,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Recent(ctx, tt.term, tt.limit)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEventsRepo_Commands(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "a", KindUser, "/status"))
	require.NoError(t, repo.Append(ctx, "a", KindReply, "ok"))
	require.NoError(t, repo.Append(ctx, "b", KindUser, "/time"))
	require.NoError(t, repo.Append(ctx, "a", KindUser, "/help"))

	got, err := repo.Commands(ctx, "a", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"/status", "/help"}, got)

	got, err = repo.Commands(ctx, "a", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"/help"}, got)

	got, err = repo.Commands(ctx, "unknown", 10)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestEventsRepo_Prune(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "local", KindUser, "old enough"))
	time.Sleep(20 * time.Millisecond)

	removed, err := repo.Prune(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	require.NoError(t, repo.Append(ctx, "local", KindUser, "fresh"))
	removed, err = repo.Prune(ctx, time.Hour)
	require.NoError(t, err)
	require.Zero(t, removed)

	got, err := repo.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"user: fresh"}, got)
}
