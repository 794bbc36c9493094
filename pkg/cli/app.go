// Package cli implements the sbdl command line: it resolves each argument to
// a project source, downloads them concurrently and reports the results.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"sbdl/pkg/config"
	"sbdl/pkg/display"
	"sbdl/pkg/downloader"
	"sbdl/pkg/loader"
	"sbdl/pkg/project"
	"sbdl/pkg/scratchapi"
)

type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

type options struct {
	outputDir string
	configDir string
	buffered  bool
	quiet     bool
	verbose   bool
	version   bool
	set       multiFlag
}

// result is the outcome of loading one source.
type result struct {
	src  source
	desc *project.Descriptor
	path string
	err  error
}

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &options{}
	fs := flag.NewFlagSet("sbdl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.outputDir, "o", "", "write projects into `dir`")
	fs.StringVar(&opts.configDir, "config", "", "read settings from `dir` instead of the XDG config directory")
	fs.BoolVar(&opts.buffered, "buffered", false, "disable fine-grained progress")
	fs.BoolVar(&opts.quiet, "quiet", false, "hide progress")
	fs.BoolVar(&opts.verbose, "v", false, "verbose logging")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")
	fs.Var(&opts.set, "set", "persist a `key=value` setting (repeatable)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: sbdl [flags] <project id | url | file>...")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.version {
		fmt.Fprintln(stdout, config.GetBuildInfo())
		return 0
	}

	disp := display.NewWriterDisplay(stderr)
	if opts.quiet {
		disp = display.NewPlainDisplay(stderr)
	}
	disp.SetVerbose(opts.verbose)
	defer disp.Close()
	setupLogging(disp, opts.verbose)

	cfg := config.Init()
	if opts.configDir != "" {
		cfg = config.New(opts.configDir)
	}

	if len(opts.set) > 0 {
		if err := saveSettings(cfg, opts.set); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		slog.Info("Saved settings", "path", cfg.GetSettingsPath())
		if fs.NArg() == 0 {
			return 0
		}
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	disp.Log("Settings: " + cfg.GetSettingsPath())
	settings, err := cfg.Settings()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if opts.outputDir != "" {
		settings.OutputDir = opts.outputDir
	}
	if opts.buffered {
		settings.Buffered = true
	}

	results := download(ctx, newLoader(settings), settings, disp, fs.Args())
	return report(stdout, DefaultTheme(), results)
}

func saveSettings(cfg *config.Config, assignments []string) error {
	return cfg.Update(func(s *config.Settings) error {
		for _, a := range assignments {
			key, value, err := config.ParseAssignment(a)
			if err != nil {
				return err
			}
			if err := s.Set(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func newLoader(s config.Settings) *loader.Loader {
	d := downloader.New(
		downloader.WithBuffered(s.Buffered),
		downloader.WithUserAgent(s.UserAgent),
	)

	var apiOpts []scratchapi.Option
	if s.APIHost != "" {
		apiOpts = append(apiOpts, scratchapi.WithAPIHost(s.APIHost))
	}
	if s.ProjectHost != "" {
		apiOpts = append(apiOpts, scratchapi.WithProjectHost(s.ProjectHost))
	}
	return loader.New(d, loader.WithScratchAPI(scratchapi.New(d, apiOpts...)))
}

// download loads every argument, at most s.Parallel at a time. A failed
// source does not stop the others.
func download(ctx context.Context, l *loader.Loader, s config.Settings, disp display.Display, args []string) []result {
	results := make([]result, len(args))

	names := newOutputNames()

	var g errgroup.Group
	g.SetLimit(s.Parallel)
	for i, arg := range args {
		g.Go(func() error {
			results[i] = loadOne(ctx, l, s, disp, names, parseSource(arg))
			return nil
		})
	}
	g.Wait()

	return results
}

func loadOne(ctx context.Context, l *loader.Loader, s config.Settings, disp display.Display, names *outputNames, src source) result {
	task := disp.StartTask(src.arg)
	defer task.Done()

	switch src.kind {
	case sourceID:
		task.SetStage("Metadata", src.ref)
	case sourceFile:
		task.SetStage("Read", src.ref)
	}

	p := &taskProgress{task: task}
	ctx = downloader.WithTrace(ctx, &downloader.Trace{GotBytes: p.gotBytes})
	desc, err := src.load(ctx, l, p.progress)
	if err != nil {
		return result{src: src, err: err}
	}
	task.Log(fmt.Sprintf("%s project, %s", desc.Type, humanize.Bytes(uint64(len(desc.Payload)))))

	res := result{src: src, desc: desc}
	if s.OutputDir == "" {
		return res
	}

	task.SetStage("Save", s.OutputDir)
	res.path, res.err = writeProject(s.OutputDir, names.reserve(fileName(desc, src)), desc)
	if res.err == nil {
		slog.Info("Saved project", "path", res.path, "type", desc.Type)
	}
	return res
}

// report prints one line per source and returns the exit code.
func report(w io.Writer, theme *Theme, results []result) int {
	code := 0
	for _, r := range results {
		if r.err != nil {
			code = 1
			fmt.Fprintf(w, "%s %s: %s\n",
				theme.Styled(theme.Red, theme.IconErr),
				r.src.arg,
				theme.Styled(theme.Red, r.err.Error()))
			continue
		}

		title := r.desc.Title
		if title == "" {
			title = "(untitled)"
		}
		line := fmt.Sprintf("%s %s: %s %s %s",
			theme.Styled(theme.Green, theme.IconOK),
			r.src.arg,
			theme.Styled(theme.Bold, r.desc.Type.String()),
			theme.Styled(theme.Cyan, title),
			theme.Styled(theme.Dim, humanize.Bytes(uint64(len(r.desc.Payload)))))
		if r.path != "" {
			line += fmt.Sprintf(" %s %s", theme.Arrow, r.path)
		}
		fmt.Fprintln(w, line)
	}
	return code
}

// displayWriter routes log output through the display so it does not
// tear the task lines.
type displayWriter struct {
	disp display.Display
}

func (w displayWriter) Write(p []byte) (int, error) {
	w.disp.Print(string(p))
	return len(p), nil
}

func setupLogging(disp display.Display, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(displayWriter{disp: disp}, &slog.HandlerOptions{Level: level})))
}
