// sjt — Simple JSON Translations: uploads source translation files to a
// translation service, waits for processing, and unpacks the finished
// per-locale files back into the project tree.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavel-te/simple-json-translations/config"
	"github.com/pavel-te/simple-json-translations/credentials"
	"github.com/pavel-te/simple-json-translations/lockfile"
	"github.com/pavel-te/simple-json-translations/pipeline"
	"github.com/pavel-te/simple-json-translations/resolve"
	"github.com/pavel-te/simple-json-translations/transfer"
	"github.com/pavel-te/simple-json-translations/unpack"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// envAPIURL overrides the service endpoint from the environment.
const envAPIURL = "SJT_API_URL"

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
	colorCyan   = "\033[0;36m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, colorCyan+"[DEBUG]"+colorReset+" "+format+"\n", args...)
	}
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	projectDir string
	verbose    bool
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sjt",
		Short: "Push translation source files to a translation service",
		Long: `sjt — Simple JSON Translations.

Finds source-language translation files in your project, uploads them to a
translation service, waits for the translations to finish, and unpacks the
per-locale results next to the sources.

Commands:
  push        Upload sources, wait for translations, download results
  status      Query the translation status of one file
  download    Fetch and unpack finished translations for one file
  init        Create a starter sjt.yml in the project directory
  auth        Manage the stored API token

Configuration comes from sjt.yml in the project directory; every setting
can be overridden with flags or the SJT_API_URL / SJT_API_TOKEN
environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flags — inherited by all subcommands
	root.PersistentFlags().StringVarP(&projectDir, "project-dir", "C", ".", "Project directory")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable detailed logging")

	root.AddCommand(
		newPushCmd(),
		newStatusCmd(),
		newDownloadCmd(),
		newInitCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sjt version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// push (upload + process + monitor + download)
// ---------------------------------------------------------------------------

func newPushCmd() *cobra.Command {
	var (
		// File selection
		sourceLang string
		patterns   []string
		manifest   bool

		// Service
		tag      string
		apiURL   string
		apiToken string

		// Monitoring
		pollInterval int
		maxRounds    int

		changedOnly bool
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upload sources, wait for translations, download results",
		Long: `Upload every matching source file, start its processing, poll the
service until the translations are ready, and unpack the resulting
per-locale files next to their sources.

File selection is either pattern mode (glob patterns with a {{lang}}
placeholder, substituted with the source language) or manifest mode
(explicit file entries from sjt.yml). Exactly one mode must be in effect.

The command succeeds if at least one file completes; individual failures
and timeouts are reported but do not abort the run.

Examples:
  # Push using patterns from sjt.yml
  sjt push

  # Push a single pattern without a config file
  sjt push --source-lang en --pattern 'locales/{{lang}}.json' --tag main

  # Use the manifest entries from sjt.yml
  sjt push --manifest

  # Skip files already pushed in their current form
  sjt push --changed-only

  # Preview without network calls
  sjt push --dry-run`,
		Run: func(cmd *cobra.Command, args []string) {
			runPush(pushArgs{
				sourceLang: sourceLang, patterns: patterns, manifest: manifest,
				tag: tag, apiURL: apiURL, apiToken: apiToken,
				pollInterval: pollInterval, maxRounds: maxRounds,
				pollChanged:   cmd.Flags().Changed("poll-interval"),
				roundsChanged: cmd.Flags().Changed("max-rounds"),
				changedOnly:   changedOnly,
				dryRun:        dryRun,
			})
		},
	}

	// File selection
	cmd.Flags().StringVarP(&sourceLang, "source-lang", "s", "", "Source language code substituted for {{lang}} in patterns")
	cmd.Flags().StringArrayVarP(&patterns, "pattern", "p", nil, "Source file pattern with {{lang}} placeholder (repeatable)")
	cmd.Flags().BoolVar(&manifest, "manifest", false, "Use the file entries from sjt.yml instead of patterns")

	// Service
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Grouping tag for this push (default: sjt.yml or current git branch)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "Translation service base URL (or SJT_API_URL)")
	cmd.Flags().StringVar(&apiToken, "api-token", "", "API token (or SJT_API_TOKEN, or 'sjt auth set')")

	// Monitoring
	cmd.Flags().IntVar(&pollInterval, "poll-interval", 5, "Seconds between status checks")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 100, "Status checks before giving up")

	cmd.Flags().BoolVar(&changedOnly, "changed-only", false, "Skip files unchanged since the last successful push (per sjt.lock)")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Walk all phases without network calls")

	return cmd
}

type pushArgs struct {
	sourceLang string
	patterns   []string
	manifest   bool
	tag        string
	apiURL     string
	apiToken   string

	pollInterval  int
	maxRounds     int
	pollChanged   bool
	roundsChanged bool

	changedOnly bool
	dryRun      bool
}

func runPush(a pushArgs) {
	s, err := resolveAPISettings(a.apiURL, a.apiToken, a.tag)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	// Pick the file selection mode: explicit patterns win, --manifest forces
	// the config file entries, and with neither the config file decides.
	if a.manifest && len(a.patterns) > 0 {
		logError("--manifest and --pattern are mutually exclusive")
		os.Exit(1)
	}
	patterns := a.patterns
	if len(patterns) == 0 && !a.manifest {
		patterns = s.cfg.Patterns
	}
	useManifest := a.manifest || (len(patterns) == 0 && len(s.cfg.Files) > 0)

	sourceLang := a.sourceLang
	if sourceLang == "" {
		sourceLang = s.cfg.SourceLang
	}

	switch {
	case useManifest && len(s.cfg.Files) == 0:
		logError("manifest mode requested but %s lists no files", config.FileName)
		os.Exit(1)
	case !useManifest && len(patterns) == 0:
		logError("nothing to push: add patterns or files to %s, or pass --pattern", config.FileName)
		os.Exit(1)
	case !useManifest && sourceLang == "":
		logError("pattern mode needs a source language: pass --source-lang or set source_lang in %s", config.FileName)
		os.Exit(1)
	}

	if s.url == "" {
		logError("no API URL configured: pass --api-url, set %s, or set api_url in %s", envAPIURL, config.FileName)
		os.Exit(1)
	}
	if s.tag == "" {
		logError("no tag: pass --tag or set tag in %s (no git branch detected)", config.FileName)
		os.Exit(1)
	}
	if s.token == "" && !a.dryRun {
		logError("an API token is required: run 'sjt auth set', pass --api-token, or set %s", credentials.EnvVar)
		os.Exit(1)
	}

	// Resolve source files
	var files []resolve.File
	if useManifest {
		files, err = resolve.ResolveManifest(s.baseDir, s.cfg.Files)
		if err != nil {
			logError("%v", err)
			os.Exit(1)
		}
	} else {
		var warnings []string
		files, warnings, err = resolve.ResolvePatterns(s.baseDir, sourceLang, patterns)
		for _, w := range warnings {
			logWarning("%s", w)
		}
		if err != nil {
			if errors.Is(err, resolve.ErrNoFilesFound) {
				logError("no source files found for the given patterns")
			} else {
				logError("%v", err)
			}
			os.Exit(1)
		}
	}

	// Checksum bookkeeping: --changed-only filters against sjt.lock, and a
	// successful push records the pushed content there.
	lock, err := lockfile.Load(s.baseDir)
	if err != nil {
		logWarning("ignoring unreadable %s: %v", lockfile.FileName, err)
		lock = lockfile.New(s.baseDir)
	}
	sums := make(map[string]string, len(files))
	for _, f := range files {
		sum, err := lockfile.HashFile(f.Path)
		if err != nil {
			logVerbose("cannot checksum %s: %v", f.Path, err)
			continue
		}
		sums[f.RelativePath] = sum
	}

	if a.changedOnly {
		kept := make([]resolve.File, 0, len(files))
		for _, f := range files {
			sum := sums[f.RelativePath]
			if sum != "" && lock.Unchanged(f.RelativePath, s.tag, sum) {
				logInfo("skipping %s (unchanged since last push)", f.RelativePath)
				continue
			}
			kept = append(kept, f)
		}
		files = kept
		if len(files) == 0 {
			logSuccess("All files unchanged since the last push; nothing to do")
			return
		}
	}

	jobs := make([]pipeline.Job, len(files))
	for i, f := range files {
		jobs[i] = pipeline.Job{
			SourcePath:    f.Path,
			RelativePath:  f.RelativePath,
			OutputPattern: f.OutputPattern,
			Tag:           s.tag,
			Additional:    f.Additional,
		}
	}

	logInfo("Project base: %s", s.baseDir)
	logInfo("Service: %s", s.url)
	logInfo("Tag: %s", s.tag)
	logInfo("Pushing %d file(s)", len(jobs))
	for _, j := range jobs {
		logVerbose("  %s -> %s (output %s)", j.SourcePath, j.RelativePath, j.OutputPattern)
	}
	if a.dryRun {
		logWarning("Dry run: no requests will be sent")
	}

	ctx, cancel := signalContext()
	defer cancel()

	client := transfer.New(s.url, s.token)
	client.UserAgent = "sjt/" + version

	res, err := pipeline.Run(ctx, client, jobs, pipeline.Options{
		DryRun:       a.dryRun,
		PollInterval: time.Duration(intSetting(a.pollChanged, a.pollInterval, s.cfg.PollInterval, 5)) * time.Second,
		MaxRounds:    intSetting(a.roundsChanged, a.maxRounds, s.cfg.MaxRounds, 100),
		Verbose:      verbose,
		OnEvent:      renderEvent,
	})
	printReport(res, client)

	if res != nil && res.Completed > 0 && !a.dryRun {
		for _, rep := range res.Reports {
			if rep.Status != pipeline.StatusCompleted {
				continue
			}
			if sum := sums[rep.Job.RelativePath]; sum != "" {
				lock.Update(rep.Job.RelativePath, rep.Job.Tag, sum)
			}
		}
		if err := lock.Save(); err != nil {
			logWarning("could not update %s: %v", lockfile.FileName, err)
		}
	}

	if err != nil {
		if ctx.Err() != nil {
			logWarning("Push interrupted")
		} else {
			logError("%v", err)
		}
		os.Exit(1)
	}
	logSuccess("Push complete")
}

// ---------------------------------------------------------------------------
// status (one-shot remote status query)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var (
		file     string
		tag      string
		apiURL   string
		apiToken string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query the translation status of one file",
		Long: `Ask the service for the translation status of a single file.

This is the manual follow-up for files a push run gave up waiting for.

Example:
  sjt status --file locales/en.json --tag main`,
		Run: func(cmd *cobra.Command, args []string) {
			runRemoteStatus(file, tag, apiURL, apiToken)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "File path as submitted (required)")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Grouping tag (default: sjt.yml or current git branch)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "Translation service base URL (or SJT_API_URL)")
	cmd.Flags().StringVar(&apiToken, "api-token", "", "API token (or SJT_API_TOKEN, or 'sjt auth set')")

	return cmd
}

func runRemoteStatus(file, tag, apiURL, apiToken string) {
	s, client := oneShotClient(file, tag, apiURL, apiToken)

	ctx, cancel := signalContext()
	defer cancel()

	st, err := client.GetStatus(ctx, file, s.tag)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	switch st.State {
	case transfer.Ready:
		logSuccess("%s: translation completed", file)
		fmt.Fprintf(os.Stderr, "  fetch it with: sjt download --file %s --tag %s --api-url %s\n", file, s.tag, client.BaseURL)
	case transfer.NotFound:
		logWarning("%s is not known to the service (tag %q)", file, s.tag)
		os.Exit(1)
	default:
		if st.Completeness > 0 {
			logInfo("%s: %s (%.0f%%)", file, st.Raw, st.Completeness)
		} else {
			logInfo("%s: %s", file, st.Raw)
		}
	}
}

// ---------------------------------------------------------------------------
// download (one-shot fetch + unpack)
// ---------------------------------------------------------------------------

func newDownloadCmd() *cobra.Command {
	var (
		file     string
		tag      string
		apiURL   string
		apiToken string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Fetch and unpack finished translations for one file",
		Long: `Download the finished translation archive for a single file and unpack
it into the file's directory, exactly as a push run would have.

Use it to pick up translations that finished after a push timed out, or
whose archive could not be retrieved during the run.

Example:
  sjt download --file locales/en.json --tag main`,
		Run: func(cmd *cobra.Command, args []string) {
			runDownload(file, tag, apiURL, apiToken)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "File path as submitted (required)")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Grouping tag (default: sjt.yml or current git branch)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "Translation service base URL (or SJT_API_URL)")
	cmd.Flags().StringVar(&apiToken, "api-token", "", "API token (or SJT_API_TOKEN, or 'sjt auth set')")

	return cmd
}

func runDownload(file, tag, apiURL, apiToken string) {
	s, client := oneShotClient(file, tag, apiURL, apiToken)
	target := downloadTargetDir(s.baseDir, file)

	ctx, cancel := signalContext()
	defer cancel()

	scratch, err := unpack.NewScratch()
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	defer scratch.Remove()

	zf, err := os.Create(scratch.ZipPath)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	logInfo("Downloading translations for %s...", file)
	if err := client.DownloadArchive(ctx, file, s.tag, zf); err != nil {
		zf.Close()
		logError("%v", err)
		os.Exit(1)
	}
	if err := zf.Close(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	if _, err := unpack.Extract(scratch.ZipPath, scratch.Dir); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	moved, err := unpack.Relocate(scratch.Dir, target)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	if len(moved) == 0 {
		logWarning("archive for %s contained no translation files", file)
		return
	}

	for _, m := range moved {
		if m.Overwrote {
			logWarning("overwrote existing file %s", m.Path)
		}
		if verbose && unpack.IsGettextFile(m.Path) {
			if total, translated, err := unpack.Stats(m.Path); err == nil {
				logVerbose("%s: %d/%d messages translated", m.Path, translated, total)
			}
		}
	}
	logSuccess("Placed %d translation file(s) in %s", len(moved), target)
}

// oneShotClient validates the flags shared by status and download and
// builds the client for a single remote call.
func oneShotClient(file, tag, apiURL, apiToken string) (apiSettings, *transfer.Client) {
	s, err := resolveAPISettings(apiURL, apiToken, tag)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	if file == "" {
		logError("--file is required")
		os.Exit(1)
	}
	if s.url == "" {
		logError("no API URL configured: pass --api-url, set %s, or set api_url in %s", envAPIURL, config.FileName)
		os.Exit(1)
	}
	if s.tag == "" {
		logError("no tag: pass --tag or set tag in %s (no git branch detected)", config.FileName)
		os.Exit(1)
	}
	if s.token == "" {
		logError("an API token is required: run 'sjt auth set', pass --api-token, or set %s", credentials.EnvVar)
		os.Exit(1)
	}

	client := transfer.New(s.url, s.token)
	client.UserAgent = "sjt/" + version
	return s, client
}

// ---------------------------------------------------------------------------
// init (write a starter sjt.yml)
// ---------------------------------------------------------------------------

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter sjt.yml in the project directory",
		Long: `Write a commented starter sjt.yml into the project directory.

Refuses to overwrite an existing configuration file.`,
		Run: func(cmd *cobra.Command, args []string) {
			path, err := config.WriteStarter(projectDir)
			if err != nil {
				logError("%v", err)
				os.Exit(1)
			}
			logSuccess("Created %s", path)

			fmt.Fprintln(os.Stderr)
			fmt.Fprintf(os.Stderr, "  # Edit the configuration\n")
			fmt.Fprintf(os.Stderr, "  $EDITOR %s\n\n", path)
			fmt.Fprintf(os.Stderr, "  # Store your API token\n")
			fmt.Fprintf(os.Stderr, "  sjt auth set\n\n")
			fmt.Fprintf(os.Stderr, "  # Push your source files\n")
			fmt.Fprintf(os.Stderr, "  sjt push\n\n")
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// auth (manage the stored API token)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored API token",
		Long: `Manage the API token stored in the local credentials file.

The token is kept in ` + credentials.FilePath() + ` (mode 0600).
A token passed with --api-token or the ` + credentials.EnvVar + ` environment
variable always takes precedence over the stored one.

Examples:
  sjt auth set                     Prompt for a token and store it
  sjt auth set --token TOKEN       Store a token non-interactively
  sjt auth status                  Show the stored token (masked)
  sjt auth remove                  Delete the stored token`,
	}

	cmd.AddCommand(
		newAuthSetCmd(),
		newAuthStatusCmd(),
		newAuthRemoveCmd(),
	)

	return cmd
}

func newAuthSetCmd() *cobra.Command {
	var (
		token  string
		apiURL string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store an API token",
		Run: func(cmd *cobra.Command, args []string) {
			runAuthSet(token, apiURL)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "API token (omit to be prompted)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "Service URL to remember with the token")

	return cmd
}

func runAuthSet(token, apiURL string) {
	existing := credentials.Load()

	if token == "" {
		fmt.Fprintf(os.Stderr, "\n%sAPI Token Setup%s\n", colorBlue, colorReset)
		fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
		fmt.Fprintln(os.Stderr)

		if existing != nil {
			fmt.Fprintf(os.Stderr, "  Current token: %s%s%s\n", colorYellow, credentials.MaskToken(existing.Token), colorReset)
			fmt.Fprintf(os.Stderr, "  Enter new token to replace, or press Enter to keep: ")
		} else {
			fmt.Fprintf(os.Stderr, "  Enter API token: ")
		}

		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			logError("No input received")
			os.Exit(1)
		}
		token = strings.TrimSpace(scanner.Text())

		if token == "" {
			if existing != nil {
				logInfo("Keeping existing token")
				return
			}
			logError("No token provided")
			os.Exit(1)
		}
	}

	if apiURL == "" {
		apiURL = os.Getenv(envAPIURL)
	}
	if apiURL == "" {
		if cfg, err := config.Load(projectDir); err == nil && cfg != nil {
			apiURL = cfg.APIURL
		}
	}
	if apiURL == "" && existing != nil {
		apiURL = existing.APIURL
	}

	if err := credentials.Save(&credentials.Info{Token: token, APIURL: apiURL}); err != nil {
		logError("Failed to save token: %v", err)
		os.Exit(1)
	}

	logSuccess("API token saved to %s", credentials.FilePath())
}

func newAuthStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored API token (masked)",
		Run: func(cmd *cobra.Command, args []string) {
			runAuthStatus()
		},
	}

	return cmd
}

func runAuthStatus() {
	fmt.Fprintf(os.Stderr, "\n%sAuthentication%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

	fmt.Fprintf(os.Stderr, "  Store:    %s\n", credentials.FilePath())

	info := credentials.Load()
	if info != nil {
		fmt.Fprintf(os.Stderr, "  Token:    %s\n", credentials.MaskToken(info.Token))
		if info.APIURL != "" {
			fmt.Fprintf(os.Stderr, "  Service:  %s\n", info.APIURL)
		}
	} else {
		fmt.Fprintf(os.Stderr, "  Token:    none stored\n")
	}

	if os.Getenv(credentials.EnvVar) != "" {
		fmt.Fprintf(os.Stderr, "  Env:      %s is set and takes precedence\n", credentials.EnvVar)
	}

	fmt.Fprintln(os.Stderr)
}

func newAuthRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Delete the stored API token",
		Run: func(cmd *cobra.Command, args []string) {
			if credentials.Load() == nil {
				logInfo("No token stored")
				return
			}
			if err := credentials.Remove(); err != nil {
				logError("Failed to remove token: %v", err)
				os.Exit(1)
			}
			logSuccess("Stored API token removed")
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// Settings resolution
// ---------------------------------------------------------------------------

// apiSettings is the merged view of flags, environment, sjt.yml and the
// credentials store for one command invocation.
type apiSettings struct {
	baseDir string
	cfg     *config.Config
	url     string
	token   string
	tag     string
}

// resolveAPISettings merges the shared service settings. Precedence per
// setting: flag > environment > sjt.yml > stored credentials > default.
func resolveAPISettings(flagURL, flagToken, flagTag string) (apiSettings, error) {
	baseDir, err := resolve.BaseDir(projectDir)
	if err != nil {
		return apiSettings{}, err
	}

	cfg, err := config.Load(projectDir)
	if err != nil {
		return apiSettings{}, err
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	return apiSettings{
		baseDir: baseDir,
		cfg:     cfg,
		url:     firstNonEmpty(flagURL, os.Getenv(envAPIURL), cfg.APIURL),
		token:   credentials.ResolveToken(flagToken),
		tag:     firstNonEmpty(flagTag, cfg.Tag, resolve.GitBranch(baseDir)),
	}, nil
}

// firstNonEmpty returns the first non-empty value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// intSetting picks an integer setting: an explicitly set flag wins, then a
// positive config file value, then the default.
func intSetting(flagChanged bool, flagVal, cfgVal, def int) int {
	if flagChanged {
		return flagVal
	}
	if cfgVal > 0 {
		return cfgVal
	}
	return def
}

// downloadTargetDir maps a submitted file path back to the directory that
// receives its translations.
func downloadTargetDir(baseDir, relPath string) string {
	p := filepath.FromSlash(relPath)
	if filepath.IsAbs(p) {
		return filepath.Dir(p)
	}
	return filepath.Dir(filepath.Join(baseDir, p))
}

// ---------------------------------------------------------------------------
// Pipeline rendering
// ---------------------------------------------------------------------------

// renderEvent maps pipeline events onto the log helpers.
func renderEvent(ev pipeline.Event) {
	switch ev.Kind {
	case pipeline.EventPhase:
		fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, ev.Message, colorReset)
		fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	case pipeline.EventSuccess:
		logSuccess("%s", ev.Message)
	case pipeline.EventWarning:
		logWarning("%s", ev.Message)
	case pipeline.EventError:
		logError("%s", ev.Message)
	default:
		logInfo("%s", ev.Message)
	}
}

// printReport renders the per-job outcome table and the follow-up commands
// for jobs the run could not finish.
func printReport(res *pipeline.Result, client *transfer.Client) {
	if res == nil || len(res.Reports) == 0 {
		return
	}

	fmt.Fprintf(os.Stderr, "\n%sResults%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	for _, rep := range res.Reports {
		fmt.Fprintf(os.Stderr, "  %s\n", jobLine(rep))
	}
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  %s\n\n", summaryLine(res))

	for _, rep := range res.Reports {
		switch {
		case rep.Status == pipeline.StatusTimedOut:
			logWarning("%s did not finish; check it later with:", rep.Job.RelativePath)
			fmt.Fprintf(os.Stderr, "  %s\n", client.CheckCommand(rep.Job.RelativePath, rep.Job.Tag))
		case rep.RetrievalErr != nil:
			logWarning("%s completed but its translations were not retrieved (%v); fetch them with:", rep.Job.RelativePath, rep.RetrievalErr)
			fmt.Fprintf(os.Stderr, "  sjt download --file %s --tag %s --api-url %s\n", rep.Job.RelativePath, rep.Job.Tag, client.BaseURL)
		}
	}
}

// jobLine renders one report row, colored by final status.
func jobLine(rep pipeline.JobReport) string {
	line := fmt.Sprintf("%-42s %s%s%s", rep.Job.RelativePath, statusColor(rep.Status), rep.Status, colorReset)
	if rep.Err != nil {
		line += fmt.Sprintf("  (%v)", rep.Err)
	}
	return line
}

func statusColor(s pipeline.Status) string {
	switch s {
	case pipeline.StatusCompleted:
		return colorGreen
	case pipeline.StatusFailed:
		return colorRed
	case pipeline.StatusTimedOut:
		return colorYellow
	default:
		return colorCyan
	}
}

func summaryLine(res *pipeline.Result) string {
	return fmt.Sprintf("%d completed, %d failed, %d timed out", res.Completed, res.Failed, res.TimedOut)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// signalContext returns a context canceled by the first interrupt; a
// second interrupt exits immediately.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logWarning("Interrupted, finishing up... (press Ctrl-C again to force quit)")
		cancel()
		<-sigCh
		os.Exit(1)
	}()

	return ctx, cancel
}
