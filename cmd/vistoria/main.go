// Command vistoria renders inspection reports offline and inspects the
// built-in point of interest catalog.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/DukeRupert/vistoria/internal"
	"github.com/DukeRupert/vistoria/internal/catalog"
	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/report"
	"github.com/DukeRupert/vistoria/internal/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// reportFlags holds the parsed flags for the report command.
type reportFlags struct {
	input       string
	theme       string
	out         string
	catalogPath string
	filesDir    string
	companyName string
	website     string
	logoURL     string
	timeout     time.Duration
	verbose     bool
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "vistoria",
		Short:        "Risk inspection reports",
		Version:      version,
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newReportCmd(), newCatalogCmd())
	return root
}

// =============================================================================
// report
// =============================================================================

func newReportCmd() *cobra.Command {
	var flags reportFlags
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the PDF report of an inspection JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.input, "input", "", "Inspection JSON file (required)")
	f.StringVar(&flags.theme, "theme", "standard", "Report theme: standard or premium")
	f.StringVar(&flags.out, "out", ".", "Directory the PDF is written to")
	f.StringVar(&flags.catalogPath, "catalog", "", "YAML catalog replacing the built-in one")
	f.StringVar(&flags.filesDir, "files", "", "Directory holding photos referenced by storage key")
	f.StringVar(&flags.companyName, "company-name", "", "Company name printed on the report")
	f.StringVar(&flags.website, "website", "", "Company website printed on the report")
	f.StringVar(&flags.logoURL, "logo-url", "", "Logo image URL")
	f.DurationVar(&flags.timeout, "timeout", 2*time.Minute, "Time limit for compiling and rendering")
	f.BoolVar(&flags.verbose, "verbose", false, "Log processing steps to stderr")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runReport(ctx context.Context, stdout, stderr io.Writer, flags reportFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	level := "warn"
	if flags.verbose {
		level = "debug"
	}
	logger := internal.NewLogger(stderr, "development", level)

	theme, err := domain.ParseReportTheme(flags.theme)
	if err != nil {
		return errors.New(domain.ErrorMessage(err))
	}

	insp, err := readInspection(flags.input)
	if err != nil {
		return err
	}

	cat, err := loadCatalog(flags.catalogPath)
	if err != nil {
		return err
	}

	downloader := report.NewHTTPImageDownloader(30 * time.Second)

	var files storage.Storage
	if flags.filesDir != "" {
		local, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: flags.filesDir}, logger)
		if err != nil {
			return fmt.Errorf("open files directory: %w", err)
		}
		files = local
	}

	opts := []report.CompilerOption{
		report.WithBranding(report.Branding{CompanyName: flags.companyName, Website: flags.website}),
	}
	if flags.logoURL != "" {
		opts = append(opts, report.WithLogo(report.NewURLLogoFetcher(flags.logoURL, downloader)))
	}
	compiler := report.NewCompiler(cat, logger, opts...)
	renderer := report.NewPDFRenderer(report.NewPhotoSource(files, downloader), logger)

	ctx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()

	doc, err := compiler.Compile(ctx, insp, theme)
	if err != nil {
		return fmt.Errorf("compile report: %w", err)
	}

	if err := os.MkdirAll(flags.out, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(flags.out, doc.Filename)
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	n, err := renderer.Render(ctx, doc, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("render report: %w", err)
	}

	fmt.Fprintf(stdout, "%s (%d pages, %d bytes)\n", path, doc.PageCount(), n)
	return nil
}

func readInspection(path string) (*domain.Inspection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inspection: %w", err)
	}
	var insp domain.Inspection
	if err := json.Unmarshal(data, &insp); err != nil {
		return nil, fmt.Errorf("parse inspection %s: %w", path, err)
	}
	if insp.EstablishmentName == "" {
		return nil, fmt.Errorf("inspection %s has no establishmentName", path)
	}
	if insp.Date.IsZero() {
		insp.Date = time.Now()
	}
	return &insp, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return catalog.Load(f)
}

// =============================================================================
// catalog
// =============================================================================

func newCatalogCmd() *cobra.Command {
	var format, path string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the point of interest catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(path)
			if err != nil {
				return err
			}
			return writeCatalog(cmd.OutOrStdout(), cat, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")
	cmd.Flags().StringVar(&path, "catalog", "", "YAML catalog replacing the built-in one")
	return cmd
}

func writeCatalog(w io.Writer, cat *catalog.Catalog, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cat.All())
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		// Same document shape catalog.Load reads.
		doc := struct {
			Points []catalog.PointOfInterest `yaml:"points"`
		}{cat.All()}
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want yaml or json)", format)
	}
}
