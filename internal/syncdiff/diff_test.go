package syncdiff

import (
	"reflect"
	"testing"

	"netsync/internal/manifest"
)

func m(entries ...manifest.Entry) manifest.Manifest {
	out := manifest.Manifest{}
	for _, e := range entries {
		out[e.Path] = e
	}
	return out
}

func TestDiff(t *testing.T) {
	local := m(
		manifest.Entry{Path: "added.txt", Hash: "h1", Size: 1},
		manifest.Entry{Path: "changed.txt", Hash: "h2new", Size: 2},
		manifest.Entry{Path: "same.txt", Hash: "h3", Size: 3},
	)
	remote := m(
		manifest.Entry{Path: "changed.txt", Hash: "h2old", Size: 2},
		manifest.Entry{Path: "same.txt", Hash: "h3", Size: 3},
		manifest.Entry{Path: "gone.txt", Hash: "h4", Size: 4},
	)

	r := Diff(local, remote)
	if !reflect.DeepEqual(r.Added, []string{"added.txt"}) {
		t.Errorf("Added = %v", r.Added)
	}
	if !reflect.DeepEqual(r.Modified, []string{"changed.txt"}) {
		t.Errorf("Modified = %v", r.Modified)
	}
	if !reflect.DeepEqual(r.Deleted, []string{"gone.txt"}) {
		t.Errorf("Deleted = %v", r.Deleted)
	}
	if !reflect.DeepEqual(r.Unchanged, []string{"same.txt"}) {
		t.Errorf("Unchanged = %v", r.Unchanged)
	}
}

func TestDiff_EmptyBoth(t *testing.T) {
	r := Diff(manifest.Manifest{}, manifest.Manifest{})
	if len(r.Added)+len(r.Modified)+len(r.Deleted)+len(r.Unchanged) != 0 {
		t.Errorf("expected all empty, got %+v", r)
	}
}

func TestDiff_DeterministicOrdering(t *testing.T) {
	local := m(
		manifest.Entry{Path: "z.txt", Hash: "h"},
		manifest.Entry{Path: "a.txt", Hash: "h"},
		manifest.Entry{Path: "m.txt", Hash: "h"},
	)
	r := Diff(local, manifest.Manifest{})
	want := []string{"a.txt", "m.txt", "z.txt"}
	if !reflect.DeepEqual(r.Added, want) {
		t.Errorf("Added = %v, want sorted %v", r.Added, want)
	}
}

func TestConflicts(t *testing.T) {
	local := m(
		manifest.Entry{Path: "newer.txt", Hash: "hl", ModTime: 200},
		manifest.Entry{Path: "older.txt", Hash: "hl2", ModTime: 50},
	)
	remote := m(
		manifest.Entry{Path: "newer.txt", Hash: "hr", ModTime: 100},
		manifest.Entry{Path: "older.txt", Hash: "hr2", ModTime: 150},
	)

	conflicts := Conflicts([]string{"newer.txt", "older.txt"}, local, remote)
	if len(conflicts) != 1 {
		t.Fatalf("Conflicts() = %+v, want exactly one conflict", conflicts)
	}
	if conflicts[0].Path != "newer.txt" {
		t.Errorf("conflicting path = %q, want newer.txt", conflicts[0].Path)
	}
}

func TestFilterByInclude(t *testing.T) {
	paths := []string{"keep/a.txt", "skip/b.txt", "keep/c.txt"}

	got := FilterByInclude(paths, func(p string) bool {
		return p == "keep/a.txt" || p == "keep/c.txt"
	})
	want := []string{"keep/a.txt", "keep/c.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterByInclude() = %v, want %v", got, want)
	}
}

func TestFilterByInclude_NilMatcherPassesThrough(t *testing.T) {
	paths := []string{"a.txt", "b.txt"}
	got := FilterByInclude(paths, nil)
	if !reflect.DeepEqual(got, paths) {
		t.Errorf("FilterByInclude(nil) = %v, want %v", got, paths)
	}
}
