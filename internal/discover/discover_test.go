package discover

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/model"
)

func TestDiscoverKinds(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "force-app/main/default/classes/Foo.cls", "public class Foo {}")
	writeFile(t, dir, "force-app/main/default/classes/Foo.cls-meta.xml", "<ApexClass/>")
	writeFile(t, dir, "force-app/main/default/triggers/AccountTrigger.trigger", "trigger AccountTrigger on Account (before insert) {}")
	writeFile(t, dir, "force-app/main/default/flows/Welcome.flow-meta.xml", "<Flow/>")
	writeFile(t, dir, "force-app/main/default/lwc/myWidget/myWidget.js", "")
	writeFile(t, dir, "force-app/main/default/lwc/myWidget/myWidget.html", "")
	writeFile(t, dir, "force-app/main/default/aura/oldCmp/oldCmpController.js", "")
	writeFile(t, dir, "force-app/main/default/permissionsets/Admin.permissionset-meta.xml", "")
	writeFile(t, dir, "force-app/main/default/flexipages/Home.flexipage-meta.xml", "")
	writeFile(t, dir, "README.md", "docs")

	entries, err := Files(dir, Options{})
	require.NoError(t, err)

	got := make(map[string]model.Kind, len(entries))
	for _, e := range entries {
		got[e.Path] = e.Kind
	}

	assert.Equal(t, map[string]model.Kind{
		"force-app/main/default/aura/oldCmp/oldCmpController.js":               model.Bundle,
		"force-app/main/default/classes/Foo.cls":                               model.Apex,
		"force-app/main/default/flexipages/Home.flexipage-meta.xml":            model.Metadata,
		"force-app/main/default/flows/Welcome.flow-meta.xml":                   model.Flow,
		"force-app/main/default/lwc/myWidget/myWidget.js":                      model.Bundle,
		"force-app/main/default/permissionsets/Admin.permissionset-meta.xml":   model.Metadata,
		"force-app/main/default/triggers/AccountTrigger.trigger":               model.Trigger,
	}, got)

	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Path, entries[i].Path, "entries should be sorted")
	}
}

func TestDiscoverSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "classes/Foo.cls", "")
	writeFile(t, dir, "node_modules/pkg/Bar.cls", "")
	writeFile(t, dir, ".sfdx/tools/Baz.cls", "")
	writeFile(t, dir, "vendor/Qux.cls", "")

	entries, err := Files(dir, Options{SkipDirs: []string{"vendor"}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "classes/Foo.cls", entries[0].Path)
}

func TestDiscoverExcludeGlobs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "classes/Foo.cls", "")
	writeFile(t, dir, "classes/FooTest.cls", "")
	writeFile(t, dir, "legacy/classes/Old.cls", "")

	entries, err := Files(dir, Options{Exclude: []string{"**/*Test.cls", "legacy"}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "classes/Foo.cls", entries[0].Path)
}

func TestDiscoverGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, ".gitignore", "scratch/\n")
	writeFile(t, dir, "classes/Foo.cls", "")
	writeFile(t, dir, "scratch/Tmp.cls", "")

	entries, err := Files(dir, Options{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = Files(dir, Options{RespectGitignore: true})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "classes/Foo.cls", entries[0].Path)
}

func TestDiscoverSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "classes/Real.cls", "")

	err := os.Symlink(filepath.Join(dir, "classes", "Real.cls"), filepath.Join(dir, "classes", "Link.cls"))
	if err != nil {
		t.Skip("symlinks not supported")
	}

	entries, err := Files(dir, Options{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "classes/Real.cls", entries[0].Path)
}

func TestDiscoverUnreadableDir(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits not enforced")
	}

	dir := t.TempDir()
	writeFile(t, dir, "classes/Foo.cls", "")
	writeFile(t, dir, "locked/Bar.cls", "")

	locked := filepath.Join(dir, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	entries, err := Files(dir, Options{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "classes/Foo.cls", entries[0].Path)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)
	cases := []struct {
		path string
		want model.Kind
		ok   bool
	}{
		{"classes/Foo.cls", model.Apex, true},
		{"Foo.cls", model.Apex, true},
		{"triggers/T.trigger", model.Trigger, true},
		{"src/T.trigger", "", false},
		{"mytriggers/T.trigger", "", false},
		{"flows/F.flow-meta.xml", model.Flow, true},
		{"lwc/cmp/cmp.js", model.Bundle, true},
		{"lwc/cmp/cmp.ts", model.Bundle, true},
		{"aura/cmp/cmpHelper.js", model.Bundle, true},
		{"aura/cmp/cmp.ts", "", false},
		{"mylwc/cmp/cmp.js", "", false},
		{"lwc.js", "", false},
		{"permissionsets/P.permissionset-meta.xml", model.Metadata, true},
		{"flexipages/H.flexipage-meta.xml", model.Metadata, true},
		{"profiles/Admin.profile-meta.xml", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			got, ok := c.Classify(tc.path)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassifyCustomMetadataSuffixes(t *testing.T) {
	t.Parallel()

	c := NewClassifier([]string{".profile-meta.xml"})
	kind, ok := c.Classify("profiles/Admin.profile-meta.xml")
	require.True(t, ok)
	assert.Equal(t, model.Metadata, kind)

	_, ok = c.Classify("permissionsets/P.permissionset-meta.xml")
	assert.False(t, ok)
}

func TestSkipsDir(t *testing.T) {
	t.Parallel()

	opts := Options{
		SkipDirs: []string{"scripts"},
		Exclude:  []string{"force-app/test/**"},
	}
	cases := map[string]bool{
		"node_modules":               true,
		"force-app/.sfdx":            true,
		"tools/scripts":              true,
		"force-app/test/classes":     true,
		"force-app/main/default":     false,
		"force-app/main/default/lwc": false,
	}
	for rel, want := range cases {
		assert.Equal(t, want, opts.SkipsDir(rel), rel)
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}
