// Command docview inspects and renders PDF and EPUB documents from the
// command line using the viewer engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/novvoo/go-docview/internal/logging"
	"github.com/novvoo/go-docview/pkg/viewer"
)

const version = "0.1.0"

// CLI defines the command-line interface for docview.
type CLI struct {
	LogLevel  string        `name:"log-level" env:"DOCVIEW_LOG_LEVEL" default:"warn" enum:"debug,info,warn,error" help:"Log level"`
	LogFormat string        `name:"log-format" env:"DOCVIEW_LOG_FORMAT" default:"text" enum:"text,json" help:"Log output format"`
	Timeout   time.Duration `env:"DOCVIEW_TIMEOUT" default:"30s" help:"Time limit for one render"`

	Detect  DetectCmd  `cmd:"" help:"Detect the format of a document"`
	Info    InfoCmd    `cmd:"" help:"Print document metadata"`
	Render  RenderCmd  `cmd:"" help:"Rasterize a PDF page to PNG"`
	Read    ReadCmd    `cmd:"" help:"Show a reflowed EPUB page"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// AfterApply installs the global logger before any command runs.
func (c *CLI) AfterApply() error {
	logging.InitLogger(logging.ParseLevel(c.LogLevel), logging.ParseFormat(c.LogFormat), os.Stderr)
	return nil
}

// Document is the positional input shared by the commands.
type Document struct {
	Path        string `arg:"" help:"Path to a PDF or EPUB file" type:"existingfile"`
	ContentType string `name:"content-type" help:"Content type hint (default: from the file extension)"`
}

func (d Document) source() (viewer.Source, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return viewer.Source{}, fmt.Errorf("read %s: %w", d.Path, err)
	}
	ct := d.ContentType
	if ct == "" {
		switch strings.ToLower(filepath.Ext(d.Path)) {
		case ".pdf":
			ct = "application/pdf"
		case ".epub":
			ct = "application/epub+zip"
		}
	}
	return viewer.Source{Data: data, ContentType: ct}, nil
}

// DetectCmd prints the detected format.
type DetectCmd struct {
	Document
}

func (c *DetectCmd) Run(ctx *kong.Context) error {
	src, err := c.source()
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "%s: %s\n", c.Path, viewer.Detect(src))
	return nil
}

// InfoCmd prints metadata and the page or section count.
type InfoCmd struct {
	Document
	Sections bool `help:"List EPUB spine sections"`
}

func (c *InfoCmd) Run(ctx *kong.Context) error {
	src, err := c.source()
	if err != nil {
		return err
	}
	h, err := viewer.Open(src)
	if err != nil {
		return err
	}
	defer h.Dispose()

	meta := h.Metadata()
	w := ctx.Stdout
	fmt.Fprintf(w, "Format:     %s\n", h.Format())
	fmt.Fprintf(w, "Identity:   %s\n", src.Identity())
	printField := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "%-11s %s\n", label+":", value)
		}
	}
	printField("Title", meta.Title)
	printField("Authors", strings.Join(meta.Authors, ", "))
	printField("Subject", meta.Subject)
	printField("Language", meta.Language)
	printField("Identifier", meta.Identifier)
	printField("Publisher", meta.Publisher)
	printField("Creator", meta.Creator)
	printField("Producer", meta.Producer)
	if !meta.Created.IsZero() {
		printField("Created", meta.Created.Format(time.RFC3339))
	}

	switch h := h.(type) {
	case *viewer.PDFHandle:
		info := h.Document().GetInfo()
		fmt.Fprintf(w, "Pages:      %d\n", h.PageCount())
		fmt.Fprintf(w, "PDF:        %s\n", info.PDFVersion)
		if info.Encrypted {
			fmt.Fprintln(w, "Encrypted:  yes")
		}
		if info.Recovered {
			fmt.Fprintln(w, "Recovered:  yes (cross-reference rebuilt)")
		}
	case *viewer.EPUBHandle:
		fmt.Fprintf(w, "Sections:   %d\n", h.PageCount())
		fmt.Fprintf(w, "Package:    %s (EPUB %s)\n", h.Book().PackagePath(), h.Book().Metadata().Version)
		for _, warning := range h.Book().Warnings() {
			fmt.Fprintf(w, "Warning:    %s\n", warning)
		}
		if c.Sections {
			for _, s := range h.Book().Sections() {
				fmt.Fprintf(w, "%4d  %s\n", s.Index+1, s.Href)
			}
		}
	}
	return nil
}

// RenderCmd rasterizes one PDF page through a viewer session.
type RenderCmd struct {
	Document
	Page  int     `short:"n" default:"1" help:"1-based page number (clamped)"`
	Scale float64 `short:"s" default:"1.5" help:"Pixels per point"`
	Out   string  `short:"o" required:"" type:"path" help:"Output PNG path"`
}

func (c *RenderCmd) Run(ctx *kong.Context, cli *CLI) error {
	src, err := c.source()
	if err != nil {
		return err
	}
	if f := viewer.Detect(src); f != viewer.FormatPDF {
		return fmt.Errorf("render needs a PDF, %s is %s (use read for EPUB)", c.Path, f)
	}

	runCtx, cancel := context.WithTimeout(context.Background(), cli.Timeout)
	defer cancel()

	m := viewer.NewManager(viewer.Config{Scale: c.Scale})
	canvas := viewer.NewImageCanvas()
	s, err := m.StartSession(runCtx, src, canvas)
	if err != nil {
		return err
	}
	defer s.End()

	if c.Page != 1 {
		req, err := s.GoTo(c.Page)
		if err != nil {
			return err
		}
		if _, err := req.Wait(runCtx); err != nil {
			return err
		}
	}

	f, err := os.Create(c.Out)
	if err != nil {
		return fmt.Errorf("create %s: %w", c.Out, err)
	}
	if err := png.Encode(f, canvas.Image()); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", c.Out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	st := s.State()
	b := canvas.Image().Bounds()
	fmt.Fprintf(ctx.Stdout, "page %d/%d %dx%d -> %s\n", st.Current, st.Total, b.Dx(), b.Dy(), c.Out)
	return nil
}

// ReadCmd shows one reflowed page of an EPUB section.
type ReadCmd struct {
	Document
	Section int    `default:"1" help:"1-based spine section (clamped)"`
	Page    int    `default:"1" help:"1-based page within the section"`
	Cols    int    `default:"72" help:"Viewport width in cells"`
	Rows    int    `default:"24" help:"Viewport height in lines"`
	Theme   string `default:"light" help:"Theme name (light, dark, sepia)"`
	PNG     string `name:"png" type:"path" help:"Also draw the page into this PNG file"`
}

func (c *ReadCmd) Run(ctx *kong.Context, cli *CLI) error {
	src, err := c.source()
	if err != nil {
		return err
	}
	if f := viewer.Detect(src); f != viewer.FormatEPUB {
		return fmt.Errorf("read needs an EPUB, %s is %s (use render for PDF)", c.Path, f)
	}

	runCtx, cancel := context.WithTimeout(context.Background(), cli.Timeout)
	defer cancel()

	m := viewer.NewManager(viewer.Config{DefaultTheme: c.Theme})
	container := viewer.NewTextContainer(c.Cols, c.Rows)
	s, err := m.StartSession(runCtx, src, container, viewer.WithTheme(c.Theme))
	if err != nil {
		return err
	}
	defer s.End()

	wait := func(req *viewer.Request, err error) (viewer.RenderResult, error) {
		if err != nil {
			return viewer.RenderResult{}, err
		}
		return req.Wait(runCtx)
	}
	if _, err := wait(s.GoTo(c.Section)); err != nil {
		return err
	}
	first, _ := container.View()
	for i := 1; i < min(c.Page, first.Pages); i++ {
		if _, err := wait(s.Next()); err != nil {
			return err
		}
	}

	v, _ := container.View()
	fmt.Fprintf(ctx.Stdout, "== %s [%d/%d, page %d/%d, %s] ==\n", v.Title, v.Section, s.State().Total, v.Page, v.Pages, v.Theme)
	fmt.Fprint(ctx.Stdout, container.String())

	if c.PNG == "" {
		return nil
	}
	img, err := v.Image(c.Cols*8+32, c.Rows*20+32)
	if err != nil {
		return err
	}
	f, err := os.Create(c.PNG)
	if err != nil {
		return fmt.Errorf("create %s: %w", c.PNG, err)
	}
	defer f.Close()
	return png.Encode(f, img)
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run(ctx *kong.Context) error {
	fmt.Fprintf(ctx.Stdout, "docview %s\n", version)
	return nil
}

func run(args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("docview"),
		kong.Description("Inspect and render PDF and EPUB documents"),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Bind(&cli),
	)
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return ctx.Run()
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var parseErr *kong.ParseError
		if errors.As(err, &parseErr) {
			parseErr.Context.PrintUsage(true)
		}
		fmt.Fprintf(os.Stderr, "docview: %v\n", err)
		os.Exit(1)
	}
}
