package screens

import (
	"testing"

	"github.com/google/uuid"
)

func TestIDsAreStableAndUnique(t *testing.T) {
	seen := map[uuid.UUID]string{}
	for _, s := range All() {
		if want := uuid.NewSHA1(namespace, []byte(s.Path)); s.ID != want {
			t.Errorf("%s: id %s not derived from path", s.Path, s.ID)
		}
		if other, dup := seen[s.ID]; dup {
			t.Errorf("%s and %s share id %s", s.Path, other, s.ID)
		}
		seen[s.ID] = s.Path
	}
}

func TestLookups(t *testing.T) {
	s, ok := ByPath(PathRecurring)
	if !ok || s.Module != ModuleFinance {
		t.Fatalf("ByPath(%s) = %+v, %v", PathRecurring, s, ok)
	}
	if got, ok := ByID(s.ID); !ok || got.Path != PathRecurring {
		t.Fatalf("ByID round trip failed: %+v", got)
	}
	if id, ok := ScreenID(PathRecurring); !ok || id != s.ID.String() {
		t.Fatalf("ScreenID = %q, %v", id, ok)
	}
	if _, ok := ByPath("/nope"); ok {
		t.Fatal("unknown path should not resolve")
	}
	if _, ok := ScreenID("/nope"); ok {
		t.Fatal("unknown path should not resolve")
	}
}

func TestModules(t *testing.T) {
	groups := Modules()
	total := 0
	for i, g := range groups {
		if i > 0 && groups[i-1].Module >= g.Module {
			t.Errorf("modules not sorted: %s before %s", groups[i-1].Module, g.Module)
		}
		for _, s := range g.Screens {
			if s.Module != g.Module {
				t.Errorf("%s grouped under %s", s.Path, g.Module)
			}
		}
		total += len(g.Screens)
	}
	if total != len(All()) {
		t.Errorf("grouped %d screens, catalog has %d", total, len(All()))
	}
}

func TestAllReturnsCopy(t *testing.T) {
	a := All()
	a[0].Path = "/mutated"
	if All()[0].Path == "/mutated" {
		t.Fatal("All must not expose the catalog")
	}
}
