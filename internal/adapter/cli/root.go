// Package cli defines the command-line surface. Wiring lives in the host
// process; commands delegate through the ReviewFunc port.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bmartin/prguard/internal/domain"
)

// ErrVersionRequested indicates the user requested the CLI version and no
// further work should be done.
var ErrVersionRequested = errors.New("version requested")

// ReviewRequest carries the parsed review invocation.
type ReviewRequest struct {
	// BaseRef selects local mode; empty means CI mode, where the pull
	// request comes from the Actions event payload. HeadRef is optional in
	// local mode and defaults to the checked-out branch.
	BaseRef string
	HeadRef string

	// RepoDir is the repository to diff in local mode.
	RepoDir string

	// Reports are tool=path scanner artifacts to fold into the run.
	Reports []string
}

// ReviewFunc runs one review. The returned error is non-nil only for fatal
// failures; partial runs return a summary and nil.
type ReviewFunc func(ctx context.Context, req ReviewRequest) (domain.RunSummary, error)

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Review  ReviewFunc
	Args    Arguments
	Version string
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "prguard",
		Short: "Automated security and quality review for pull requests",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(reviewCommand(deps.Review))

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func reviewCommand(runReview ReviewFunc) *cobra.Command {
	var baseRef string
	var headRef string
	var repoDir string
	var reports []string

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review a pull request or a local ref pair",
		Long: "With no flags, reviews the pull request named by the GitHub Actions " +
			"event payload and posts findings as review comments. With --base, diffs " +
			"two refs of a local repository and prints findings instead; --head " +
			"defaults to the currently checked-out branch.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runReview == nil {
				return errors.New("review runner is not configured")
			}
			if headRef != "" && baseRef == "" {
				return errors.New("--head requires --base")
			}

			summary, err := runReview(cmd.Context(), ReviewRequest{
				BaseRef: baseRef,
				HeadRef: headRef,
				RepoDir: repoDir,
				Reports: reports,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), summary.Headline())
			if !summary.Succeeded() {
				return fmt.Errorf("review failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseRef, "base", "", "Base ref for local mode")
	cmd.Flags().StringVar(&headRef, "head", "", "Head ref for local mode (defaults to the current branch)")
	cmd.Flags().StringVar(&repoDir, "repo-dir", ".", "Repository directory for local mode")
	cmd.Flags().StringArrayVar(&reports, "report", nil, "Scanner report to ingest, as tool=path (repeatable)")

	return cmd
}
