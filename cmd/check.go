package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rill-lang/rill/internal/log"
	"github.com/rill-lang/rill/rill"
	"github.com/spf13/cobra"
)

var CheckCmd = &cobra.Command{
	Use:          "check manifest.yaml...",
	Short:        "Check the units of declaration manifests",
	RunE:         runCheck,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

var (
	logLevel    *int
	logSections *[]string
	colorMode   *string
)

func init() {
	logLevel = CheckCmd.Flags().IntP("log-level", "l", int(slog.LevelError), "log level")
	logSections = CheckCmd.Flags().StringSlice("log-section", nil, "sections whose debug logs are printed, like capability or region")
	colorMode = CheckCmd.Flags().String("color", "auto", "colorize output: auto, always or never")
}

func runCheck(cmd *cobra.Command, args []string) error {
	log.SetLevel(slog.Level(*logLevel))
	log.EnableSections(*logSections...)

	out := cmd.OutOrStdout()
	color, err := useColor(*colorMode, out)
	if err != nil {
		return err
	}
	failed := 0
	for _, path := range args {
		m, err := rill.LoadManifest(path)
		if err != nil {
			return err
		}
		report := rill.Check(m)
		printReport(out, m.Path(), report, color)
		if report.HasErrors() {
			failed++
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d manifests have errors", failed, len(args))
	}
	return nil
}

func useColor(mode string, out io.Writer) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		f, ok := out.(*os.File)
		return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())), nil
	}
	return false, errors.Errorf("unknown color mode %q, expected auto, always or never", mode)
}

const (
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

type painter bool

func (p painter) paint(style, s string) string {
	if !p {
		return s
	}
	return style + s + ansiReset
}

func printReport(w io.Writer, path string, report *rill.Report, color bool) {
	p := painter(color)
	sb := &strings.Builder{}
	fmt.Fprintln(sb, p.paint(ansiBold, path))
	for _, u := range report.Units {
		fmt.Fprintf(sb, "unit %s\n", u.Name)
		for _, b := range u.Bindings {
			fmt.Fprintf(sb, "  %s: %s\n", b.Name, b.Type)
		}
		for _, v := range u.Verdicts {
			status := p.paint(ansiGreen, "ok  ")
			if !v.Passed() {
				status = p.paint(ansiRed, "fail")
			}
			fmt.Fprintf(sb, "  %s %s\n", status, v.Origin.Construct)
		}
		for _, sig := range u.Signatures {
			fmt.Fprintf(sb, "  %s: %s\n", sig.Origin.Construct, sig.Function())
		}
		for _, inst := range u.Instances {
			fmt.Fprintf(sb, "  %s: %s\n", inst.Origin.Construct, inst.ID)
		}
	}
	diagnostics := report.Diagnostics()
	if len(diagnostics) > 0 {
		fmt.Fprintln(sb, p.paint(ansiRed, fmt.Sprintf("%d errors:", len(diagnostics))))
		for _, d := range diagnostics {
			sb.WriteString("  ")
			sb.WriteString(report.Format(d))
			sb.WriteString("\n")
		}
	}
	_, _ = io.WriteString(w, sb.String())
}
