package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kashi/internal/store"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "kashi.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestRememberAndForget(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	added, err := s.Remember(ctx, "u", "I like football")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Remember(ctx, "u", "I like football")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = s.Remember(ctx, "u", "My cat is Tom")
	require.NoError(t, err)
	_, err = s.Remember(ctx, "u", "Football on sundays")
	require.NoError(t, err)

	n, err := s.Forget(ctx, "u", "My cat is Tom")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Forget(ctx, "u", "FOOTBALL")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	facts, err := s.Facts(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SetPreference(ctx, "u", " Language ", "hindi"))
	require.NoError(t, s.SetPreference(ctx, "u", "language", "gujarati"))

	v, ok, err := s.Preference(ctx, "u", "LANGUAGE")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gujarati", v)

	deleted, err := s.DeletePreference(ctx, "u", "language")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, ok, err = s.Preference(ctx, "u", "language")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	p, err := s.Profile(ctx, "u", "Asha")
	require.NoError(t, err)
	assert.Equal(t, "User profile for Asha: (no saved memory yet).", p)

	for i := 0; i < 22; i++ {
		_, err := s.Remember(ctx, "u", fmt.Sprintf("fact %d", i))
		require.NoError(t, err)
	}
	require.NoError(t, s.SetPreference(ctx, "u", "tone", "casual"))

	p, err = s.Profile(ctx, "u", "Asha")
	require.NoError(t, err)
	assert.Contains(t, p, "Preferences: tone = casual")
	assert.Contains(t, p, "fact 19")
	assert.NotContains(t, p, "fact 20")
	assert.Contains(t, p, "... (+2 more facts)")
}

func TestParsePreference(t *testing.T) {
	cases := []struct {
		in, key, value string
		ok             bool
	}{
		{"language = hindi", "language", "hindi", true},
		{"voice: female", "voice", "female", true},
		{"units to metric", "units", "metric", true},
		{"theme dark mode", "theme", "dark mode", true},
		{"lonely", "", "", false},
	}
	for _, tc := range cases {
		k, v, ok := ParsePreference(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.key, k, tc.in)
		assert.Equal(t, tc.value, v, tc.in)
	}
}
