package depgraph

import (
	"reflect"
	"strings"
	"testing"
)

func parse(t *testing.T, input string) *Graph {
	t.Helper()
	g, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return g
}

func TestParseClassifiesSources(t *testing.T) {
	g := parse(t, `{
	  "packages": [
	    {"name": "serde-like", "version": "1.0.0", "source": "registry"},
	    {"name": "my-app", "version": "0.1.0", "source": "local"},
	    {"name": "corp-auth", "version": "2.0.0", "source": "foreign"},
	    {"name": "left-pad", "version": "1.3.0"}
	  ]
	}`)

	if got, want := g.RegistryNames(), []string{"left-pad", "serde-like"}; !reflect.DeepEqual(got, want) {
		t.Errorf("RegistryNames = %v, want %v", got, want)
	}
	if got, want := g.LocalNames(), []string{"my-app"}; !reflect.DeepEqual(got, want) {
		t.Errorf("LocalNames = %v, want %v", got, want)
	}
	if got, want := g.ForeignNames(), []string{"corp-auth"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ForeignNames = %v, want %v", got, want)
	}
}

func TestParseDefaultsToRegistry(t *testing.T) {
	g := parse(t, `{"packages": [{"name": "left-pad"}]}`)
	if g.Packages[0].Source != SourceRegistry {
		t.Errorf("source = %q, want registry", g.Packages[0].Source)
	}
}

func TestParseCollapsesDuplicateVersions(t *testing.T) {
	// A resolved graph can legitimately carry the same name at two
	// versions; the request set lists it once.
	g := parse(t, `{
	  "packages": [
	    {"name": "left-pad", "version": "1.2.0"},
	    {"name": "left-pad", "version": "1.3.0"}
	  ]
	}`)
	if got := g.RegistryNames(); len(got) != 1 || got[0] != "left-pad" {
		t.Errorf("RegistryNames = %v, want [left-pad]", got)
	}
}

func TestParseIgnoresExtraMetadata(t *testing.T) {
	g := parse(t, `{
	  "generator": "some-tool 3.1",
	  "packages": [
	    {"name": "left-pad", "version": "1.3.0", "checksum": "abc123", "features": ["std"]}
	  ]
	}`)
	if len(g.Packages) != 1 {
		t.Fatalf("packages = %v", g.Packages)
	}
}

func TestParseRejectsInvalidInput(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"packages": [`,
		"missing field":   `{"dependencies": []}`,
		"empty name":      `{"packages": [{"name": ""}]}`,
		"missing name":    `{"packages": [{"version": "1.0.0"}]}`,
		"unknown source":  `{"packages": [{"name": "x", "source": "git"}]}`,
		"packages scalar": `{"packages": "left-pad"}`,
	}
	for label, input := range cases {
		if _, err := Parse(strings.NewReader(input)); err == nil {
			t.Errorf("%s: Parse accepted %s", label, input)
		}
	}
}

func TestParseEmptyPackageList(t *testing.T) {
	g := parse(t, `{"packages": []}`)
	if got := g.RegistryNames(); len(got) != 0 {
		t.Errorf("RegistryNames = %v, want empty", got)
	}
}
