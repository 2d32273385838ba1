package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func names(c *Catalog) []string {
	var out []string
	for _, s := range c.Services() {
		out = append(out, s.Name)
	}
	return out
}

func TestDefault(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	if cat.Len() == 0 {
		t.Fatal("Default() catalog is empty")
	}
	cats := cat.Categories()
	want := []string{"injectables", "skin_treatments", "laser", "body"}
	if len(cats) != len(want) {
		t.Fatalf("categories = %d, want %d", len(cats), len(want))
	}
	for i, c := range cats {
		if c.Name != want[i] {
			t.Errorf("category[%d] = %q, want %q", i, c.Name, want[i])
		}
	}
	if first := cat.Services()[0].Name; first != "Botox" {
		t.Errorf("first service = %q, want Botox", first)
	}

	again, _ := Default()
	if again != cat {
		t.Error("Default() should return the same catalog on every call")
	}
}

func TestParseYAMLKeepsOrder(t *testing.T) {
	doc := `
zeta:
  - name: Z One
    problems_treated: [a problem]
alpha:
  - name: A One
    description: first alpha
  - name: A Two
    enhancements: [glow]
`
	cat, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	got := strings.Join(names(cat), ",")
	if got != "Z One,A One,A Two" {
		t.Errorf("traversal = %q, want Z One,A One,A Two", got)
	}
	s, ok := cat.Lookup("a two")
	if !ok || len(s.Enhancements) != 1 || s.Enhancements[0] != "glow" {
		t.Errorf("Lookup(a two) = %+v, %v", s, ok)
	}
	if s.ProblemsTreated != nil || s.Description != "" {
		t.Errorf("absent fields should be empty, got %+v", s)
	}
}

func TestParseJSONKeepsOrder(t *testing.T) {
	doc := `{
	"lasers": [{"name": "IPL", "problems_treated": ["redness"]}],
	"injectables": [{"name": "Botox", "description": "relaxes"}, {"name": "Kybella"}],
	"empty": null
}`
	cat, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	got := strings.Join(names(cat), ",")
	if got != "IPL,Botox,Kybella" {
		t.Errorf("traversal = %q, want IPL,Botox,Kybella", got)
	}
	cats := cat.Categories()
	if len(cats) != 3 || cats[0].Name != "lasers" || cats[2].Name != "empty" {
		t.Errorf("categories = %+v", cats)
	}
}

func TestParseEmpty(t *testing.T) {
	for _, doc := range []string{"", "   \n", "{}"} {
		cat, err := Parse([]byte(doc))
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", doc, err)
		}
		if cat.Len() != 0 {
			t.Errorf("Parse(%q) Len = %d, want 0", doc, cat.Len())
		}
	}
}

func TestParseRejectsBlankName(t *testing.T) {
	docs := map[string]string{
		"yaml": "injectables:\n  - name: Botox\n  - description: nameless\n",
		"json": `{"injectables": [{"name": "Botox"}, {"name": "  "}]}`,
	}
	for format, doc := range docs {
		_, err := Parse([]byte(doc))
		if !errors.Is(err, ErrInvalidServiceRecord) {
			t.Errorf("%s: error = %v, want ErrInvalidServiceRecord", format, err)
			continue
		}
		if !strings.Contains(err.Error(), "injectables[1]") {
			t.Errorf("%s: error %q should name injectables[1]", format, err)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	docs := []string{
		"- just\n- a list\n",
		"injectables: not-a-list\n",
		`{"injectables": {"name": "Botox"}}`,
		`{"injectables": [`,
		"injectables:\n  - name: [unclosed\n",
	}
	for _, doc := range docs {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("Parse(%q) expected error", doc)
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "services.json")
	if err := os.WriteFile(path, []byte(`{"skin": [{"name": "HydraFacial"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	cat, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if _, ok := cat.Lookup("HYDRAFACIAL"); !ok {
		t.Error("Lookup should be case-insensitive")
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadFile(missing) expected error")
	}
}

func TestLoad(t *testing.T) {
	cat, err := Load(strings.NewReader("body:\n  - name: PRP Therapy\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cat.Len() != 1 {
		t.Errorf("Len = %d, want 1", cat.Len())
	}
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	if c.Len() != 0 || c.Services() != nil || c.Categories() != nil {
		t.Error("nil catalog should be empty")
	}
	if _, ok := c.Lookup("Botox"); ok {
		t.Error("nil catalog Lookup should miss")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("nil catalog Validate = %v", err)
	}
}

func TestNewCopiesCategories(t *testing.T) {
	cats := []Category{{Name: "a", Services: []Service{{Name: "One"}}}}
	c := New(cats...)
	cats[0].Name = "changed"
	if c.Categories()[0].Name != "a" {
		t.Error("New should not alias the caller's slice")
	}
}
