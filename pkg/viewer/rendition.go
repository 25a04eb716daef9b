package viewer

import (
	"strings"
	"sync"

	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	"github.com/novvoo/go-docview/pkg/epub"
)

// LastPage addresses the final page of a section in a Location
const LastPage = -1

// Location addresses one page of one section, both 1-based
type Location struct {
	Section int
	Page    int
}

type line struct {
	text string
	para int
}

// layout is a section paginated for one viewport size
type layout struct {
	cols, rows int
	title      string
	lines      []line
	starts     []int // index into lines of each page's first line
}

func (l *layout) pages() int { return len(l.starts) }

func (l *layout) page(n int) []string {
	start := l.starts[n-1]
	end := min(start+l.rows, len(l.lines))
	out := make([]string, 0, end-start)
	for _, ln := range l.lines[start:end] {
		out = append(out, ln.text)
	}
	return out
}

func (l *layout) anchor(n int) int {
	if len(l.lines) == 0 {
		return 0
	}
	return l.lines[l.starts[n-1]].para
}

// paginate word-wraps each paragraph to cols, hard-wraps words longer than
// a line and cuts the result into pages of rows lines. Paragraphs are
// separated by a blank line that never starts a page.
func paginate(c epub.Content, cols, rows int) *layout {
	l := &layout{cols: cols, rows: rows, title: c.Title}
	for i, p := range c.Paragraphs() {
		if i > 0 {
			l.lines = append(l.lines, line{para: i})
		}
		wrapped := wrap.String(wordwrap.String(p, cols), cols)
		for _, s := range strings.Split(wrapped, "\n") {
			l.lines = append(l.lines, line{text: strings.TrimRight(s, " "), para: i})
		}
	}

	for start := 0; start < len(l.lines); {
		if start > 0 && l.lines[start].text == "" {
			start++
			continue
		}
		l.starts = append(l.starts, start)
		start += rows
	}
	if len(l.starts) == 0 {
		l.starts = []int{0}
	}
	return l
}

// Rendition is the live renderer of one EPUB handle into one container. It
// holds the registered themes and the selected theme; switching themes
// restyles the current view without touching the handle.
type Rendition struct {
	mu           sync.Mutex
	handle       FlowHandle
	target       Container
	themes       map[string]Theme
	selected     string
	applied      string
	defaultTheme string
	displayed    bool
	current      View
	anchor       int
	layouts      map[int]*layout
	destroyed    bool
}

// NewRendition binds a handle to a container. The built-in themes are
// registered; defaultTheme is applied at first display unless another
// theme was selected before.
func NewRendition(h FlowHandle, target Container, defaultTheme string) *Rendition {
	if defaultTheme == "" {
		defaultTheme = ThemeLight
	}
	return &Rendition{
		handle:       h,
		target:       target,
		themes:       BuiltinThemes(),
		defaultTheme: defaultTheme,
		layouts:      make(map[int]*layout),
	}
}

// RegisterTheme adds or replaces a theme. Registering the theme that is on
// screen does not restyle it until it is selected again.
func (r *Rendition) RegisterTheme(name string, t Theme) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.themes[name] = t.clone()
}

// SelectTheme applies a registered theme. Before first display the choice
// is kept and applied by the first display. Unknown names leave the previous
// selection in place.
func (r *Rendition) SelectTheme(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed {
		return ErrSessionEnded
	}
	if _, ok := r.themes[name]; !ok {
		return &ThemeError{Kind: NotRegistered, Name: name}
	}
	if r.displayed {
		if err := r.show(r.current, name); err != nil {
			return err
		}
	}
	r.selected = name
	return nil
}

// Theme returns the name of the theme on screen, or "" before first display
func (r *Rendition) Theme() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applied
}

// Themes returns the registered theme names
func (r *Rendition) Themes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.themes))
	for name := range r.themes {
		names = append(names, name)
	}
	return names
}

// Location returns the location on screen
func (r *Rendition) Location() Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Location{Section: r.current.Section, Page: r.current.Page}
}

// Displayed reports whether a view has been shown
func (r *Rendition) Displayed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.displayed
}

// layoutFor paginates a section for the container's current size. r.mu must be held.
func (r *Rendition) layoutFor(section int) (*layout, error) {
	if r.destroyed {
		return nil, ErrSessionEnded
	}
	if section < 1 || section > r.handle.PageCount() {
		return nil, &RenderError{Kind: IndexOutOfRange, Index: section}
	}
	cols, rows := r.target.Size()
	if !r.target.Mounted() || cols < 1 || rows < 1 {
		return nil, &RenderError{Kind: TargetUnavailable, Index: section}
	}
	if l, ok := r.layouts[section]; ok && l.cols == cols && l.rows == rows {
		return l, nil
	}

	content, err := r.handle.Section(section)
	if err != nil {
		return nil, err
	}
	l := paginate(content, cols, rows)
	r.layouts[section] = l
	return l, nil
}

// Locate builds the view for loc without showing it. Page is clamped into
// the section; LastPage selects the final page.
func (r *Rendition) Locate(loc Location) (View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locate(loc)
}

func (r *Rendition) locate(loc Location) (View, error) {
	l, err := r.layoutFor(loc.Section)
	if err != nil {
		return View{}, err
	}
	page := loc.Page
	if page == LastPage || page > l.pages() {
		page = l.pages()
	}
	page = max(page, 1)
	return View{
		Section: loc.Section,
		Page:    page,
		Pages:   l.pages(),
		Title:   l.title,
		Lines:   l.page(page),
	}, nil
}

// Step moves delta pages (±1) from loc, crossing section boundaries. At
// either end of the book loc is returned unchanged with moved false.
func (r *Rendition) Step(loc Location, delta int) (next Location, moved bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := r.layoutFor(loc.Section)
	if err != nil {
		return loc, false, err
	}
	page := min(max(loc.Page, 1), l.pages())
	if loc.Page == LastPage {
		page = l.pages()
	}
	cur := Location{Section: loc.Section, Page: page}

	switch {
	case delta > 0 && page < l.pages():
		return Location{Section: loc.Section, Page: page + 1}, true, nil
	case delta > 0 && loc.Section < r.handle.PageCount():
		return Location{Section: loc.Section + 1, Page: 1}, true, nil
	case delta < 0 && page > 1:
		return Location{Section: loc.Section, Page: page - 1}, true, nil
	case delta < 0 && loc.Section > 1:
		prev, err := r.layoutFor(loc.Section - 1)
		if err != nil {
			return cur, false, err
		}
		return Location{Section: loc.Section - 1, Page: prev.pages()}, true, nil
	}
	return cur, false, nil
}

// Commit shows a view built by Locate, styled with the selected theme
func (r *Rendition) Commit(v View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return ErrSessionEnded
	}
	if l, ok := r.layouts[v.Section]; ok && v.Page <= l.pages() {
		r.anchor = l.anchor(v.Page)
	}
	return r.show(v, r.selected)
}

// show displays v styled with theme name, falling back to the default
// theme and then to light. r.mu must be held.
func (r *Rendition) show(v View, name string) error {
	if !r.target.Mounted() {
		return &RenderError{Kind: TargetUnavailable, Index: v.Section}
	}
	if name == "" {
		name = r.defaultTheme
	}
	theme, ok := r.themes[name]
	if !ok {
		name, theme = ThemeLight, r.themes[ThemeLight]
	}
	v.Theme = name
	v.Style = theme.Style()
	if err := r.target.Show(v); err != nil {
		return &RenderError{Kind: TargetUnavailable, Index: v.Section, Err: err}
	}
	r.applied = name
	r.displayed = true
	r.current = v
	return nil
}

// Display shows the first page of a section
func (r *Rendition) Display(section int) (View, error) {
	return r.display(Location{Section: section, Page: 1})
}

func (r *Rendition) display(loc Location) (View, error) {
	v, err := r.Locate(loc)
	if err != nil {
		return View{}, err
	}
	if err := r.Commit(v); err != nil {
		return View{}, err
	}
	return r.currentView(), nil
}

func (r *Rendition) currentView() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Next shows the following page, moving into the next section after the
// last page of a section.
func (r *Rendition) Next() (View, bool, error) {
	return r.move(1)
}

// Prev shows the preceding page
func (r *Rendition) Prev() (View, bool, error) {
	return r.move(-1)
}

func (r *Rendition) move(delta int) (View, bool, error) {
	loc, moved, err := r.Step(r.Location(), delta)
	if err != nil || !moved {
		return r.currentView(), false, err
	}
	v, err := r.display(loc)
	return v, err == nil, err
}

// Reflow discards pagination after the container was resized and returns
// the location that keeps the paragraph at the top of the current page in
// view. The caller displays it.
func (r *Rendition) Reflow() (Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.layouts = make(map[int]*layout)
	if !r.displayed {
		return Location{Section: 1, Page: 1}, nil
	}
	l, err := r.layoutFor(r.current.Section)
	if err != nil {
		return Location{}, err
	}
	first := len(l.lines)
	for i, ln := range l.lines {
		if ln.para >= r.anchor {
			first = i
			break
		}
	}
	page := 1
	for n, start := range l.starts {
		if start <= first {
			page = n + 1
		}
	}
	return Location{Section: r.current.Section, Page: page}, nil
}

// Destroy releases the rendition. The handle is not disposed.
func (r *Rendition) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyed = true
	r.layouts = nil
	r.handle = nil
	r.target = nil
}

// Destroyed reports whether Destroy was called
func (r *Rendition) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}
