package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(`
// project settings
workers 4
max_file_size "2MB"
respect_gitignore true
exclude "**/__tests__/**" "**/*Test.cls"
skip_dirs {
    "scripts"
    "manifest"
}
metadata_suffixes ".permissionset-meta.xml" ".profile-meta.xml"
classes "AccountService" "classes/Foo.cls"
`)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, int64(2*1024*1024), cfg.MaxFileSize)
	assert.True(t, cfg.RespectGitignore)
	assert.Equal(t, []string{"**/__tests__/**", "**/*Test.cls"}, cfg.Exclude)
	assert.Equal(t, []string{"scripts", "manifest"}, cfg.SkipDirs)
	assert.Equal(t, []string{".permissionset-meta.xml", ".profile-meta.xml"}, cfg.MetadataSuffixes)
	assert.Equal(t, []string{"AccountService", "classes/Foo.cls"}, cfg.Classes)

	opts := cfg.DiscoverOptions()
	assert.True(t, opts.RespectGitignore)
	assert.Equal(t, cfg.Exclude, opts.Exclude)
}

func TestParseIntegerSize(t *testing.T) {
	t.Parallel()

	cfg, err := Parse("max_file_size 1024")
	require.NoError(t, err)
	assert.Equal(t, int64(1024), cfg.MaxFileSize)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"unknown setting": `colour "blue"`,
		"negative workers": "workers -1",
		"bad size":         `max_file_size "lots"`,
		"bad glob":         `exclude "[unclosed"`,
		"bad suffix":       `metadata_suffixes "flexipage-meta.xml"`,
		"syntax":           `workers {`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(content)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("workers 2\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
}

func TestParseSize(t *testing.T) {
	t.Parallel()

	cases := map[string]int64{
		"0":     0,
		"512":   512,
		"512B":  512,
		"4kb":   4096,
		"2MB":   2 * 1024 * 1024,
		" 1GB ": 1024 * 1024 * 1024,
	}
	for in, want := range cases {
		got, err := ParseSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
