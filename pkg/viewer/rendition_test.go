package viewer

import (
	"errors"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/novvoo/go-docview/pkg/epub"
)

func TestPaginate(t *testing.T) {
	c := epub.Content{
		Title: "T",
		Text:  "alpha beta gamma delta\nsupercalifragilistic\nend",
	}
	l := paginate(c, 10, 3)

	var got []string
	for _, ln := range l.lines {
		got = append(got, ln.text)
	}
	want := []string{"alpha beta", "gamma", "delta", "", "supercalif", "ragilistic", "", "end"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", got, want)
	}
	for _, ln := range got {
		if runewidth.StringWidth(ln) > 10 {
			t.Errorf("line %q wider than 10 cells", ln)
		}
	}

	// pages: [alpha beta, gamma, delta] [supercalif, ragilistic, ""] [end]
	if l.pages() != 3 {
		t.Fatalf("pages() = %d, want 3", l.pages())
	}
	if p := l.page(2); p[0] != "supercalif" {
		t.Errorf("page 2 = %q", p)
	}
	if p := l.page(3); len(p) != 1 || p[0] != "end" {
		t.Errorf("page 3 = %q, blank separator should not start a page", p)
	}
	if l.anchor(3) != 2 {
		t.Errorf("anchor(3) = %d, want 2", l.anchor(3))
	}

	empty := paginate(epub.Content{}, 10, 3)
	if empty.pages() != 1 || len(empty.page(1)) != 0 {
		t.Errorf("empty section should have one blank page")
	}
}

func TestPaginateWideRunes(t *testing.T) {
	l := paginate(epub.Content{Text: "日本語の文章です"}, 6, 10)
	for _, ln := range l.lines {
		if w := runewidth.StringWidth(ln.text); w > 6 {
			t.Errorf("line %q is %d cells wide", ln.text, w)
		}
	}
	if len(l.lines) < 2 {
		t.Errorf("expected wide text to wrap, got %d lines", len(l.lines))
	}
}

func TestRenditionPendingTheme(t *testing.T) {
	h := openTestEPUBHandle(t, threeSectionEPUB(t))
	container := NewTextContainer(40, 10)
	r := NewRendition(h, container, ThemeLight)

	if err := r.SelectTheme(ThemeSepia); err != nil {
		t.Fatalf("SelectTheme before display: %v", err)
	}
	if r.Theme() != "" || container.Shows() != 0 {
		t.Fatal("selecting a theme before display must not display anything")
	}

	v, err := r.Display(1)
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if v.Theme != ThemeSepia || r.Theme() != ThemeSepia {
		t.Errorf("first display theme = %q / %q, want sepia", v.Theme, r.Theme())
	}
	shown, _ := container.View()
	if shown.Style.Background != "#f4ecd8" {
		t.Errorf("container background = %q", shown.Style.Background)
	}
}

func TestRenditionDefaultTheme(t *testing.T) {
	h := openTestEPUBHandle(t, threeSectionEPUB(t))
	r := NewRendition(h, NewTextContainer(40, 10), ThemeDark)
	v, err := r.Display(1)
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if v.Theme != ThemeDark || v.Style.Color != "#e0e0e0" {
		t.Errorf("default theme not applied: %+v", v)
	}
}

func TestRenditionThemeSwitch(t *testing.T) {
	h := openTestEPUBHandle(t, threeSectionEPUB(t))
	container := NewTextContainer(40, 10)
	r := NewRendition(h, container, "")

	if _, err := r.Display(2); err != nil {
		t.Fatalf("Display: %v", err)
	}
	before, _ := container.View()

	r.RegisterTheme("contrast", Theme{"body": {"color": "#ffff00", "background-color": "#000000"}})
	if err := r.SelectTheme("contrast"); err != nil {
		t.Fatalf("SelectTheme: %v", err)
	}
	after, _ := container.View()
	if after.Theme != "contrast" || after.Style.Background != "#000000" {
		t.Errorf("theme not restyled: %+v", after.Style)
	}
	if after.Section != before.Section || after.Page != before.Page || len(after.Lines) != len(before.Lines) {
		t.Error("switching theme must keep the location and lines")
	}

	err := r.SelectTheme("missing")
	var te *ThemeError
	if !errors.As(err, &te) || te.Name != "missing" || !errors.Is(err, ErrNotRegistered) {
		t.Errorf("SelectTheme(missing) error = %v", err)
	}
	if r.Theme() != "contrast" {
		t.Errorf("failed selection changed the theme to %q", r.Theme())
	}
}

func TestRenditionNavigation(t *testing.T) {
	h := openTestEPUBHandle(t, threeSectionEPUB(t))
	r := NewRendition(h, NewTextContainer(30, 8), ThemeLight)

	if _, err := r.Display(1); err != nil {
		t.Fatalf("Display: %v", err)
	}
	if _, moved, _ := r.Prev(); moved {
		t.Error("Prev at the first page should not move")
	}

	v, moved, err := r.Next()
	if err != nil || !moved || v.Section != 2 || v.Page != 1 {
		t.Fatalf("Next from a one-page section = %+v moved=%v err=%v", v, moved, err)
	}
	if v.Pages < 2 {
		t.Fatalf("long section should span pages, got %d", v.Pages)
	}
	pages := v.Pages

	for i := 2; i <= pages; i++ {
		if v, _, _ = r.Next(); v.Section != 2 || v.Page != i {
			t.Fatalf("step %d: at %d/%d", i, v.Section, v.Page)
		}
	}
	if v, _, _ = r.Next(); v.Section != 3 {
		t.Fatalf("Next after the last page should enter section 3, got %+v", v)
	}
	if _, moved, _ = r.Next(); moved {
		t.Error("Next at the end of the book should not move")
	}

	v, _, _ = r.Prev()
	if v.Section != 2 || v.Page != pages {
		t.Errorf("Prev into section 2 = %d/%d, want last page %d", v.Section, v.Page, pages)
	}

	if _, err := r.Display(4); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Display(4) error = %v", err)
	}
}

func TestRenditionReflow(t *testing.T) {
	h := openTestEPUBHandle(t, threeSectionEPUB(t))
	container := NewTextContainer(30, 8)
	r := NewRendition(h, container, ThemeLight)

	v, err := r.Display(2)
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	narrow := v.Pages
	for i := 0; i < 3; i++ {
		if v, _, err = r.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if v.Page != 4 {
		t.Fatalf("expected page 4, got %d", v.Page)
	}

	content, err := h.Section(2)
	if err != nil {
		t.Fatalf("Section: %v", err)
	}
	r.mu.Lock()
	anchor := content.Paragraphs()[r.anchor]
	r.mu.Unlock()
	head := strings.Join(strings.Fields(anchor)[:3], " ")

	container.SetSize(60, 12)
	loc, err := r.Reflow()
	if err != nil {
		t.Fatalf("Reflow: %v", err)
	}
	wide, err := r.Locate(loc)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if wide.Section != 2 || wide.Pages >= narrow {
		t.Errorf("after widening: %+v (narrow had %d pages)", wide, narrow)
	}

	found := false
	for _, ln := range wide.Lines {
		if strings.HasPrefix(ln, head) {
			found = true
		}
	}
	if !found {
		t.Errorf("reflowed page %d does not start paragraph %q: %q", wide.Page, head, wide.Lines)
	}
}

func TestRenditionTargetUnavailable(t *testing.T) {
	h := openTestEPUBHandle(t, threeSectionEPUB(t))
	container := NewTextContainer(0, 0)
	r := NewRendition(h, container, ThemeLight)

	if _, err := r.Display(1); !errors.Is(err, ErrTargetUnavailable) {
		t.Errorf("zero-size container: error = %v", err)
	}

	container.SetSize(40, 10)
	container.Unmount()
	if _, err := r.Display(1); !errors.Is(err, ErrTargetUnavailable) {
		t.Errorf("unmounted container: error = %v", err)
	}
}

func TestRenditionDestroy(t *testing.T) {
	h := openTestEPUBHandle(t, threeSectionEPUB(t))
	r := NewRendition(h, NewTextContainer(40, 10), ThemeLight)
	r.Destroy()

	if !r.Destroyed() {
		t.Error("Destroyed() = false")
	}
	if _, err := r.Display(1); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("Display after Destroy = %v", err)
	}
	if err := r.SelectTheme(ThemeDark); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("SelectTheme after Destroy = %v", err)
	}
	if h.Disposed() {
		t.Error("Destroy must not dispose the handle")
	}
}

func TestViewImage(t *testing.T) {
	v := View{
		Lines: []string{"Hello"},
		Style: BuiltinThemes()[ThemeDark].Style(),
	}
	img, err := v.Image(120, 60)
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	r, g, b, _ := img.At(119, 59).RGBA()
	if r>>8 != 0x12 || g>>8 != 0x12 || b>>8 != 0x12 {
		t.Errorf("background pixel = %02x%02x%02x, want 121212", r>>8, g>>8, b>>8)
	}
	if _, err := v.Image(0, 10); err == nil {
		t.Error("zero width should fail")
	}
}

func TestTextContainerString(t *testing.T) {
	c := NewTextContainer(6, 2)
	c.Show(View{Lines: []string{"ab", "日本語です"}})
	want := "ab    \n日本語\n"
	if got := c.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestRenditionThemeNotKeptWhenShowFails(t *testing.T) {
	h := openTestEPUBHandle(t, threeSectionEPUB(t))
	container := &toggleContainer{TextContainer: NewTextContainer(40, 10)}
	r := NewRendition(h, container, ThemeLight)

	if _, err := r.Display(1); err != nil {
		t.Fatalf("Display: %v", err)
	}

	container.down.Store(true)
	if err := r.SelectTheme(ThemeDark); !errors.Is(err, ErrTargetUnavailable) {
		t.Fatalf("SelectTheme = %v, want ErrTargetUnavailable", err)
	}
	if r.Theme() != ThemeLight {
		t.Errorf("Theme() = %q after a failed selection", r.Theme())
	}

	container.down.Store(false)
	v, moved, err := r.Next()
	if err != nil || !moved {
		t.Fatalf("Next: moved=%v err=%v", moved, err)
	}
	if v.Theme != ThemeLight {
		t.Errorf("next page styled %q, want the theme still on screen", v.Theme)
	}
}
