package imagegen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	prompt string
	err    error
}

func (f *fakeBackend) GenerateImage(_ context.Context, prompt string) ([]byte, error) {
	f.prompt = prompt
	return []byte("\x89PNG"), f.err
}

func TestGenerateSavesFile(t *testing.T) {
	dir := t.TempDir()
	be := &fakeBackend{}
	g := New(be, dir)

	path, err := g.Generate(context.Background(), "a red fox", 2)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a_red_fox_2.png"), path)
	assert.Equal(t, "a red fox, "+qualitySuffix, be.prompt)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data)
}

func TestGenerateBackendError(t *testing.T) {
	g := New(&fakeBackend{err: errors.New("quota")}, t.TempDir())

	_, err := g.Generate(context.Background(), "cat", 1)

	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "cat_on_mat_1.png", FileName("cat on mat?", 1))
}

func TestFileNameTruncatesOnRunes(t *testing.T) {
	name := FileName(strings.Repeat("बिल्ली ", 30), 2)

	assert.True(t, utf8.ValidString(name))
	assert.Equal(t, 80, utf8.RuneCountInString(strings.TrimSuffix(name, "_2.png")))
}
