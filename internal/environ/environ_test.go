package environ

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestOpenMissingFileIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := s.Namespaces(); !reflect.DeepEqual(got, []string{DefaultNamespace}) {
		t.Fatalf("namespaces = %v", got)
	}
	if _, ok := s.Lookup("anything"); ok {
		t.Fatalf("expected empty store")
	}
}

func TestOpenRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(`{"default": [`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil || !strings.Contains(err.Error(), "parse env file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestNamespacesAndLookup(t *testing.T) {
	s := New("env.json")
	if err := s.Load([]byte(`{"default":{"TOKEN":"abc"},"prod":{"TOKEN":"xyz","HOST":"h"}}`)); err != nil {
		t.Fatal(err)
	}
	if v, ok := s.Lookup("TOKEN"); !ok || v != "abc" {
		t.Fatalf("default TOKEN = %q %v", v, ok)
	}
	if err := s.Select("prod"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Lookup("TOKEN"); v != "xyz" {
		t.Fatalf("prod TOKEN = %q", v)
	}
	if err := s.Select("staging"); err == nil {
		t.Fatalf("expected unknown namespace error")
	}
	if s.Selected() != "prod" {
		t.Fatalf("failed select must keep the previous namespace")
	}
	if got := s.MissingFrom("HOST"); !reflect.DeepEqual(got, []string{"default"}) {
		t.Fatalf("MissingFrom(HOST) = %v", got)
	}
	if got := s.MissingFrom("NOPE"); got != nil {
		t.Fatalf("MissingFrom(NOPE) = %v", got)
	}
	if got := s.ValuesOf("TOKEN"); len(got) != 2 || got["prod"] != "xyz" {
		t.Fatalf("ValuesOf(TOKEN) = %v", got)
	}
}

func TestSetUnsetSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	s := New(path)
	if err := s.Set("A", "1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(" ", "1"); err == nil {
		t.Fatalf("expected empty-name error")
	}
	s.AddNamespace("dev")
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := reopened.Lookup("A"); !ok || v != "1" {
		t.Fatalf("A = %q %v", v, ok)
	}
	if got := reopened.Namespaces(); !reflect.DeepEqual(got, []string{"default", "dev"}) {
		t.Fatalf("namespaces = %v", got)
	}
	if !reopened.Unset("A") || reopened.Unset("A") {
		t.Fatalf("Unset should report existence once")
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "\n  \"default\"") {
		t.Fatalf("expected indented json, got %s", data)
	}
}

func TestLocatePrefersWorkspace(t *testing.T) {
	work := t.TempDir()
	home := t.TempDir()

	if path, ok := Locate(work, home); ok || path != filepath.Join(work, FileName) {
		t.Fatalf("no files: got %s %v", path, ok)
	}
	if err := os.WriteFile(filepath.Join(home, FileName), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if path, ok := Locate(work, home); !ok || path != filepath.Join(home, FileName) {
		t.Fatalf("home fallback: got %s %v", path, ok)
	}
	if err := os.WriteFile(filepath.Join(work, FileName), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if path, ok := Locate(work, home); !ok || path != filepath.Join(work, FileName) {
		t.Fatalf("workspace: got %s %v", path, ok)
	}
}

func TestChainOrder(t *testing.T) {
	chain := Chain{Map{"A": "store"}, nil, Map{"A": "process", "B": "b"}}
	if v, _ := chain.Lookup("A"); v != "store" {
		t.Fatalf("A = %q", v)
	}
	if v, _ := chain.Lookup("B"); v != "b" {
		t.Fatalf("B = %q", v)
	}
	if _, ok := chain.Lookup("C"); ok {
		t.Fatalf("C should be missing")
	}
	if got := chain.Label(); got != "map, map" {
		t.Fatalf("label = %q", got)
	}
}

func TestProcessSource(t *testing.T) {
	t.Setenv("RSTD_TEST_VALUE", "42")
	if v, ok := NewProcess().Lookup("RSTD_TEST_VALUE"); !ok || v != "42" {
		t.Fatalf("process lookup = %q %v", v, ok)
	}
}
