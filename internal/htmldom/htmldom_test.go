package htmldom

import (
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html><html><body>
<div class="athing" id="42"><span class="titleline"><a href="/item?id=42">Hello</a></span></div>
<div class="subtext"><a class="hnuser">alice</a></div>
</body></html>`

func TestParse_PermissiveOnMalformedMarkup(t *testing.T) {
	root, err := Parse(strings.NewReader("<div><span>unterminated"))
	if err != nil {
		t.Fatalf("expected permissive parse to never fail, got: %v", err)
	}
	if root.Type() != TypeDocument {
		t.Errorf("expected a document root, got type %v", root.Type())
	}
}

func TestSelect_FindsElementByClass(t *testing.T) {
	root, err := Parse(strings.NewReader(samplePage))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	sel, err := ParseSelector(".athing")
	if err != nil {
		t.Fatalf("unexpected selector error: %v", err)
	}
	matches := root.Select(sel)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	id, ok := matches[0].Attr("id")
	if !ok || id != "42" {
		t.Errorf("expected id=42, got %q (ok=%v)", id, ok)
	}
}

func TestSelect_InvalidSelectorSurfacesError(t *testing.T) {
	if _, err := ParseSelector(":::not-a-selector"); err == nil {
		t.Error("expected an error compiling an invalid selector")
	}
}

func TestText_ConcatenatesDescendants(t *testing.T) {
	root, err := Parse(strings.NewReader(samplePage))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	sel, _ := ParseSelector(".titleline")
	matches := root.Select(sel)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if got := matches[0].Text(); got != "Hello" {
		t.Errorf("expected %q, got %q", "Hello", got)
	}
}

func TestHasClass(t *testing.T) {
	root, _ := Parse(strings.NewReader(samplePage))
	sel, _ := ParseSelector("a.hnuser")
	matches := root.Select(sel)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if !matches[0].HasClass("hnuser") {
		t.Error("expected hnuser class to be present")
	}
	if matches[0].HasClass("missing") {
		t.Error("did not expect missing class to be present")
	}
}

func TestChildElements_Order(t *testing.T) {
	root, _ := Parse(strings.NewReader(`<ul><li>a</li><li>b</li><li>c</li></ul>`))
	sel, _ := ParseSelector("ul")
	ul := root.Select(sel)[0]
	children := ul.ChildElements()
	if len(children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(children))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got := children[i].Text(); got != want {
			t.Errorf("child %d: expected %q, got %q", i, want, got)
		}
	}
}
