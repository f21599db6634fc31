package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/model"
)

func TestEveryKindRegistered(t *testing.T) {
	t.Parallel()
	for _, k := range model.Kinds {
		assert.NotNil(t, For(k), "no matcher for %s", k)
	}
}

func TestApexMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		text string
		want bool
	}{
		{"constructor", "Bar.cls", "public class Bar { void m(){ new Foo(); } }", true},
		{"constructor upper case", "Bar.cls", "public class Bar { void m(){ NEW foo(); } }", true},
		{"constructor generic arg", "Bar.cls", "List<Foo> xs = new List<Foo>();", false},
		{"static access", "Bar.cls", "Integer n = Foo.count();", true},
		{"static access prefix only", "Bar.cls", "Integer n = FooBar.count();", false},
		{"extends", "Bar.cls", "public class Bar extends Foo {}", true},
		{"extends substring", "Bar.cls", "public class Bar extends FooBase {}", true},
		{"extends glued", "Bar.cls", "// extendsFoo", false},
		{"implements", "Bar.cls", "public class Bar implements Foo {}", true},
		{"implements list", "Bar.cls", "global class Bar implements Database.Batchable<SObject>, Foo, Schedulable {", true},
		{"implements elsewhere", "Bar.cls", "public class Bar implements Other { Foo f; }", false},
		{"type only", "Bar.cls", "private Foo helper;", false},
		{"self reference", "Foo.cls", "public class Foo { static Foo make() { return new Foo(); } }", false},
		{"self reference other case", "foo.cls", "public class foo { void m() { Foo.run(); } }", false},
	}

	p := Compile("Foo")
	m := For(model.Apex)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := NewSource("classes/"+tt.file, []byte(tt.text))
			assert.Equal(t, tt.want, m.Matches(src, p))
		})
	}
}

func TestTriggerMatches(t *testing.T) {
	t.Parallel()

	p := Compile("Foo")
	m := For(model.Trigger)

	assert.True(t, m.Matches(NewSource("triggers/T.trigger", []byte("Foo.doWork();")), p))
	assert.True(t, m.Matches(NewSource("triggers/T.trigger", []byte("new Foo().run();")), p))
	assert.False(t, m.Matches(NewSource("triggers/T.trigger", []byte("// extends Foo\n// implements Foo")), p))

	name, err := m.Subject(NewSource("force-app/triggers/MyTrigger.trigger", nil))
	require.NoError(t, err)
	assert.Equal(t, "MyTrigger", name)
}

func TestApexSubjectKeepsCase(t *testing.T) {
	t.Parallel()

	name, err := For(model.Apex).Subject(NewSource("classes/AccountService.cls", nil))
	require.NoError(t, err)
	assert.Equal(t, "AccountService", name)
}

func TestBundleMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"salesforce import", "import getData from '@salesforce/apex/Foo.getData';", true},
		{"scoped import", "import apex from '@scoped/apex/Foo.getData'", true},
		{"namespaced import", "import getData from '@salesforce/apex/acme.Foo.getData';", true},
		{"import case", "import getData from '@salesforce/apex/foo.getData';", true},
		{"import other class", "import getData from '@salesforce/apex/FooBar.getData';", false},
		{"import without member", "import Foo from '@salesforce/apex/Foo';", false},
		{"aura controller", "var action = component.get('c.Foo');", true},
		{"aura controller prefix", "var action = component.get('c.FooBar');", false},
		{"unrelated", "export default class Widget extends LightningElement {}", false},
	}

	p := Compile("Foo")
	m := For(model.Bundle)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := NewSource("lwc/myWidget/myWidget.js", []byte(tt.text))
			assert.Equal(t, tt.want, m.Matches(src, p))
		})
	}
}

func TestBundleName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"force-app/main/default/lwc/myWidget/myWidget.js":  "myWidget",
		"force-app/main/default/lwc/myWidget/utils/fmt.ts": "myWidget",
		"lwc/outer/lwc/inner/inner.js":                     "inner",
		"force-app/main/default/LWC/upper/upper.js":        "upper",
		"force-app/main/default/aura/cmp/cmpController.js": "",
	}
	for in, want := range cases {
		assert.Equal(t, want, BundleName(in), in)
	}
}

func TestMetadataMatches(t *testing.T) {
	t.Parallel()

	p := Compile("Foo")
	m := For(model.Metadata)

	perm := `<PermissionSet><classAccesses><apexClass>Foo</apexClass><enabled>true</enabled></classAccesses></PermissionSet>`
	assert.True(t, m.Matches(NewSource("permissionsets/Admin.permissionset-meta.xml", []byte(perm)), p))

	attr := `<component apexClass="FOO"/>`
	assert.True(t, m.Matches(NewSource("flexipages/Home.flexipage-meta.xml", []byte(attr)), p))

	other := `<classAccesses><apexClass>FooBar</apexClass></classAccesses>`
	assert.False(t, m.Matches(NewSource("permissionsets/Admin.permissionset-meta.xml", []byte(other)), p))

	name, err := m.Subject(NewSource("permissionsets/Admin.permissionset-meta.xml", nil))
	require.NoError(t, err)
	assert.Equal(t, "Admin.permissionset-meta.xml", name)
}
