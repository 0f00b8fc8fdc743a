package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/secure-deps/depowners/internal/reconcile"
	"github.com/secure-deps/depowners/internal/report"
	"github.com/secure-deps/depowners/internal/registry"
)

var errTimeout = errors.New("timeout")

func renderMapping() *reconcile.Mapping {
	m := reconcile.NewMapping()
	m.Add("left-pad", []registry.Owner{
		{ID: 7, Kind: registry.KindUser, Login: "alice"},
	})
	m.Add("shared-lib", []registry.Owner{
		{ID: 7, Kind: registry.KindUser, Login: "alice"},
		{ID: 42, Kind: registry.KindTeam, Login: "github:acme:publishers"},
	})
	m.Add("quiet-pkg", nil)
	return m
}

func TestRenderPackagesDiffable(t *testing.T) {
	var buf strings.Builder
	renderPackages(&buf, report.ByPackage(renderMapping()), true)

	want := `package "left-pad": alice
package "quiet-pkg": <no owners>
package "shared-lib": team "github:acme:publishers", alice
`
	if buf.String() != want {
		t.Errorf("diffable output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestRenderPackagesDisplay(t *testing.T) {
	var buf strings.Builder
	renderPackages(&buf, report.ByPackage(renderMapping()), false)
	out := buf.String()

	for _, want := range []string{
		"1. left-pad: alice",
		"2. quiet-pkg: <no owners>",
		`3. shared-lib: team "github:acme:publishers", alice`,
		"outstanding publisher invitations",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderPackagesUnresolved(t *testing.T) {
	m := renderMapping()
	m.MarkUnresolved("ghost-pkg", errTimeout)

	var buf strings.Builder
	renderPackages(&buf, report.ByPackage(m), true)
	if !strings.Contains(buf.String(), `package "ghost-pkg": <unresolved>`) {
		t.Errorf("unresolved row missing:\n%s", buf.String())
	}
}

func TestRenderPackagesEmpty(t *testing.T) {
	var buf strings.Builder
	renderPackages(&buf, nil, false)
	if !strings.Contains(buf.String(), "No registry packages found") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRenderPublishersDiffable(t *testing.T) {
	var buf strings.Builder
	renderPublishers(&buf, renderMapping(), true)

	want := `user "alice": left-pad, shared-lib
team "github:acme:publishers": shared-lib
`
	if buf.String() != want {
		t.Errorf("diffable output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestRenderPublishersDisplay(t *testing.T) {
	var buf strings.Builder
	renderPublishers(&buf, renderMapping(), false)
	out := buf.String()

	for _, want := range []string{
		"The following individuals can publish updates",
		"1. alice via packages: left-pad, shared-lib",
		"All members of the following teams can publish updates",
		`1. "github:acme:publishers" (https://github.com/acme) via packages: shared-lib`,
		"Github teams are black boxes",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderPublishersNoTeams(t *testing.T) {
	m := reconcile.NewMapping()
	m.Add("left-pad", []registry.Owner{{ID: 7, Kind: registry.KindUser, Login: "alice"}})

	var buf strings.Builder
	renderPublishers(&buf, m, false)
	if strings.Contains(buf.String(), "teams") {
		t.Errorf("team section should be absent:\n%s", buf.String())
	}
}

func TestGithubOrg(t *testing.T) {
	cases := []struct {
		login string
		org   string
		ok    bool
	}{
		{"github:acme:publishers", "acme", true},
		{"github:acme", "acme", true},
		{"github:", "", false},
		{"gitlab:acme:publishers", "", false},
		{"alice", "", false},
	}
	for _, c := range cases {
		org, ok := githubOrg(c.login)
		if org != c.org || ok != c.ok {
			t.Errorf("githubOrg(%q) = %q, %v; want %q, %v", c.login, org, ok, c.org, c.ok)
		}
	}
}
