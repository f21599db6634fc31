package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoReusesUnchangedFiles(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	memo, err := NewMemo(64)
	require.NoError(t, err)

	first, err := Analyze(context.Background(), dir, []string{"Foo"}, WithMemo(memo))
	require.NoError(t, err)
	assert.Equal(t, 3, memo.Len())

	bar := filepath.Join(dir, base+"classes/Bar.cls")
	info, err := os.Stat(bar)
	require.NoError(t, err)
	second, err := Analyze(context.Background(), dir, []string{"Foo"}, WithMemo(memo))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A changed file is read again.
	writeFile(t, dir, base+"classes/Bar.cls", "public class Bar {}")
	later := info.ModTime().Add(time.Hour)
	require.NoError(t, os.Chtimes(bar, later, later))
	third, err := Analyze(context.Background(), dir, []string{"Foo"}, WithMemo(memo))
	require.NoError(t, err)
	assert.Empty(t, third[0].UsedBy.Apex)
	assert.Equal(t, []string{"MyTrigger"}, third[0].UsedBy.Triggers)
}

func TestMemoResetsOnNewClasses(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	memo, err := NewMemo(64)
	require.NoError(t, err)

	_, err = Analyze(context.Background(), dir, []string{"Foo"}, WithMemo(memo))
	require.NoError(t, err)

	got, err := Analyze(context.Background(), dir, []string{"Bar", "Foo"}, WithMemo(memo))
	require.NoError(t, err)
	want, err := Analyze(context.Background(), dir, []string{"Bar", "Foo"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNewMemoRejectsBadSize(t *testing.T) {
	t.Parallel()
	_, err := NewMemo(0)
	assert.Error(t, err)
}
