package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"revdiff/cli/internal/batch"
	"revdiff/cli/internal/cache"
	"revdiff/cli/internal/config"
	"revdiff/cli/internal/diff"
	"revdiff/cli/internal/engine"
	"revdiff/cli/internal/erruser"
	"revdiff/cli/internal/export"
	"revdiff/cli/internal/git"
	"revdiff/cli/internal/telemetry"
	"revdiff/cli/internal/trace"
	"revdiff/cli/internal/version"
)

// errExit is an error that carries an exit code for the CLI. Use errors.As to detect it.
type errExit int

func (e errExit) Error() string {
	return "exit " + strconv.Itoa(int(e))
}

// exitInvalidInput is returned for malformed arguments, paths and manifests.
const exitInvalidInput = 2

func main() {
	os.Exit(Run())
}

// Run is the entry point for the CLI. It is exported for testing.
func Run() int {
	return runCLI(os.Args[1:])
}

func runCLI(args []string) int {
	return execute(args, os.Stdout, os.Stderr)
}

func execute(args []string, stdout, stderr io.Writer) int {
	rootCmd := &cobra.Command{
		Use:     "revdiff",
		Short:   "Line diffs of a file between two revisions, with a shared result cache",
		Version: version.String(),
	}
	rootCmd.PersistentFlags().StringP("repo", "C", "", "Run as if started in this directory (default: current directory)")
	rootCmd.PersistentFlags().String("output", "json", "Output format: json (default) or human")
	rootCmd.PersistentFlags().Int("context", 0, "Context lines around each hunk (overrides config and env)")
	rootCmd.PersistentFlags().String("backend", "", "Git object access: gogit or exec (overrides config and env)")
	rootCmd.PersistentFlags().Bool("trace", false, "Print internal steps to stderr (resolution, cache hits and misses)")
	rootCmd.PersistentFlags().String("spans", "", "Write OpenTelemetry spans as JSON to this file")
	rootCmd.AddCommand(newDiffCmd())
	rootCmd.AddCommand(newCompleteCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		var exitErr errExit
		if errors.As(err, &exitErr) {
			return int(exitErr)
		}
		fmt.Fprintln(stderr, err)
		if u := errors.Unwrap(err); u != nil {
			fmt.Fprintf(stderr, "Details: %v\n", u)
		}
		if errors.Is(err, erruser.ErrInvalidInput) || errors.Is(err, erruser.ErrInvalidPath) {
			return exitInvalidInput
		}
		return 1
	}
	return 0
}

// app is the per-invocation wiring shared by all commands.
type app struct {
	cfg      *config.Config
	engine   *engine.Engine
	cache    *cache.Cache
	tracer   *trace.Tracer
	output   string
	shutdown telemetry.Shutdown
	spans    *os.File
	stderr   io.Writer
}

// overridesFromFlags returns Overrides for the persistent flags that were set.
func overridesFromFlags(cmd *cobra.Command) *config.Overrides {
	o := &config.Overrides{}
	if f := cmd.Flags().Lookup("context"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetInt("context")
		o.ContextLines = &v
	}
	if f := cmd.Flags().Lookup("backend"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetString("backend")
		o.Backend = &v
	}
	if f := cmd.Flags().Lookup("concurrency"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetInt("concurrency")
		o.BatchConcurrency = &v
	}
	return o
}

func setup(cmd *cobra.Command) (*app, error) {
	output, _ := cmd.Flags().GetString("output")
	if output != "json" && output != "human" {
		return nil, erruser.Wrap(erruser.ErrInvalidInput, "Invalid output format; use json or human.", fmt.Errorf("output %q", output))
	}
	dir, _ := cmd.Flags().GetString("repo")
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, erruser.New("Could not determine current directory.", err)
		}
		dir = cwd
	}
	// The backend finds the root, so it is chosen before the repo config is
	// read and reopened if the repo config picks another.
	overrides := overridesFromFlags(cmd)
	pre, err := config.Load(cmd.Context(), config.LoadOptions{Overrides: overrides})
	if err != nil {
		return nil, err
	}
	repo, err := git.Open(dir, pre.Backend)
	if err != nil {
		return nil, err
	}
	repoRoot := repo.WorkingDir()
	cfg, err := config.Load(cmd.Context(), config.LoadOptions{RepoRoot: repoRoot, Overrides: overrides})
	if err != nil {
		return nil, err
	}
	if cfg.Backend != pre.Backend {
		if repo, err = git.Open(repoRoot, cfg.Backend); err != nil {
			return nil, err
		}
	}
	a := &app{cfg: cfg, output: output, stderr: cmd.ErrOrStderr(), shutdown: func(context.Context) error { return nil }}
	if on, _ := cmd.Flags().GetBool("trace"); on {
		a.tracer = trace.New(cmd.ErrOrStderr())
	}
	if path, _ := cmd.Flags().GetString("spans"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, erruser.New("Could not create spans file.", err)
		}
		shutdown, err := telemetry.Init(f, version.String())
		if err != nil {
			f.Close()
			return nil, erruser.New("Could not start telemetry.", err)
		}
		a.spans, a.shutdown = f, shutdown
	}
	a.tracer.Section("Config")
	a.tracer.Event("loaded", "repo", repoRoot, "backend", cfg.Backend, "context", cfg.ContextLines, "cache_max_bytes", cfg.CacheMaxBytes, "cache_ttl", cfg.CacheTTL)
	a.cache = cache.New(cache.Options{MaxBytes: cfg.CacheMaxBytes, TTL: cfg.CacheTTL, Tracer: a.tracer})
	a.engine = engine.New(repo, engine.Options{
		ContextLines:  cfg.ContextLines,
		DefaultOldRef: cfg.DefaultOldRef,
		Cache:         a.cache,
		Tracer:        a.tracer,
	})
	return a, nil
}

// withTimeout returns a context bounded by the configured timeout.
func (a *app) withTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Timeout > 0 {
		return context.WithTimeout(parent, a.cfg.Timeout)
	}
	return context.WithCancel(parent)
}

// close flushes spans and closes the spans file. Failures are reported as
// warnings since the command's own result has already been written.
func (a *app) close() {
	if err := a.shutdown(context.Background()); err != nil {
		fmt.Fprintf(a.stderr, "Warning: could not flush spans: %v\n", err)
	}
	if a.spans != nil {
		if err := a.spans.Close(); err != nil {
			fmt.Fprintf(a.stderr, "Warning: could not close spans file: %v\n", err)
		}
	}
}

func newDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <path>",
		Short: "Hunk diff of a file (default: configured old ref against the working tree)",
		Args:  cobra.ExactArgs(1),
		RunE:  runDiff,
	}
	cmd.Flags().String("old", "", "Old revision (default: default_old_ref, usually HEAD)")
	cmd.Flags().String("new", "", "New revision (default: working tree)")
	return cmd
}

func runDiff(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()
	oldRef, _ := cmd.Flags().GetString("old")
	newRef, _ := cmd.Flags().GetString("new")
	r, err := a.engine.ComputeFileDiff(ctx, args[0], oldRef, newRef)
	if err != nil {
		return err
	}
	return a.writeResult(cmd.OutOrStdout(), r)
}

func newCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <path> <old> <new>",
		Short: "Every line of a file at <new>, with lines removed since <old> inlined",
		Args:  cobra.ExactArgs(3),
		RunE:  runComplete,
	}
	return cmd
}

func runComplete(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()
	r, err := a.engine.ComputeCompleteDiff(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	return a.writeResult(cmd.OutOrStdout(), r)
}

func (a *app) writeResult(w io.Writer, r diff.Result) error {
	if a.output == "json" {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(r); err != nil {
			return erruser.New("Could not write diff.", err)
		}
		return nil
	}
	return writeHuman(w, r)
}

// writeHuman prints r as prefixed lines, with old and new line numbers in
// front of each line.
func writeHuman(w io.Writer, r diff.Result) error {
	switch {
	case r.OldAbsent && r.NewAbsent:
		_, err := fmt.Fprintln(w, "File does not exist on either side.")
		return err
	case r.OldAbsent:
		fmt.Fprintln(w, "New file.")
	case r.NewAbsent:
		fmt.Fprintln(w, "Deleted file.")
	}
	if r.Binary {
		_, err := fmt.Fprintln(w, "Binary files differ.")
		return err
	}
	num := func(n int) string {
		if n == 0 {
			return ""
		}
		return strconv.Itoa(n)
	}
	for _, l := range r.Lines {
		if l.Type == diff.LineHeader {
			if _, err := fmt.Fprintln(w, l.Content); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%5s %5s %s\n", num(l.OldLine), num(l.NewLine), l.String()); err != nil {
			return err
		}
	}
	s := r.Stats()
	_, err := fmt.Fprintf(w, "+%d -%d\n", s.Added, s.Removed)
	return err
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <manifest.yaml>",
		Short: "Run a YAML manifest of diff requests concurrently; one JSON line per request",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	cmd.Flags().Int("concurrency", 0, "Concurrent requests when the manifest does not set one (overrides config and env)")
	cmd.Flags().Bool("stats", false, "Print cache statistics to stderr when done")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	m, err := batch.LoadManifest(args[0])
	if err != nil {
		return err
	}
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()

	a.tracer.Section("Batch")
	responses := batch.NewRunner(a.engine, a.cfg.BatchConcurrency, a.tracer).Run(ctx, m)
	w := cmd.OutOrStdout()
	if a.output == "json" {
		if err := batch.WriteJSONLines(w, responses); err != nil {
			return erruser.New("Could not write batch results.", err)
		}
	} else {
		for _, r := range responses {
			if r.Error != nil {
				fmt.Fprintf(w, "%s\t%s\terror: %s\n", r.ID, r.Path, r.Error.Message)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t+%d -%d\n", r.ID, r.Path, r.Stats.Added, r.Stats.Removed)
		}
	}
	if showStats, _ := cmd.Flags().GetBool("stats"); showStats {
		b, err := json.Marshal(a.cache.Stats())
		if err != nil {
			return erruser.New("Could not write cache statistics.", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "cache: %s\n", b)
	}
	if n := batch.Failed(responses); n > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d requests failed.\n", n, len(responses))
		return errExit(1)
	}
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <path>...",
		Short: "Write a git-style unified patch for the given files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runExport,
	}
	cmd.Flags().String("old", "", "Old revision (default: default_old_ref, usually HEAD)")
	cmd.Flags().String("new", "", "New revision (default: working tree)")
	cmd.Flags().String("to", "-", "Destination: - for stdout, a local path, or a URL such as file:// or mem://")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()
	oldRef, _ := cmd.Flags().GetString("old")
	newRef, _ := cmd.Flags().GetString("new")
	dest, _ := cmd.Flags().GetString("to")
	req := export.Request{Paths: args, Old: oldRef, New: newRef}
	x := export.New(a.engine, a.tracer)
	if dest == "-" {
		patch, err := x.Render(ctx, req)
		if err != nil {
			return err
		}
		if _, err := cmd.OutOrStdout().Write(patch); err != nil {
			return erruser.New("Could not write patch.", err)
		}
		return nil
	}
	n, err := x.Export(ctx, req, dest)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s.\n", n, dest)
	return nil
}
