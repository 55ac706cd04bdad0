package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/bmartin/prguard/internal/adapter/cli"
	"github.com/bmartin/prguard/internal/adapter/git"
	githubadapter "github.com/bmartin/prguard/internal/adapter/github"
	"github.com/bmartin/prguard/internal/adapter/llm"
	llmhttp "github.com/bmartin/prguard/internal/adapter/llm/http"
	"github.com/bmartin/prguard/internal/adapter/llm/openai"
	"github.com/bmartin/prguard/internal/adapter/store/sqlite"
	"github.com/bmartin/prguard/internal/config"
	"github.com/bmartin/prguard/internal/domain"
	"github.com/bmartin/prguard/internal/ingest"
	usecasegithub "github.com/bmartin/prguard/internal/usecase/github"
	"github.com/bmartin/prguard/internal/usecase/review"
	"github.com/bmartin/prguard/internal/version"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return
		}
		log.Println(llmhttp.RedactURLSecrets(err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	logger := buildLogger(cfg.Logging)

	root := cli.NewRootCommand(cli.Dependencies{
		Review: func(ctx context.Context, req cli.ReviewRequest) (domain.RunSummary, error) {
			return runReview(ctx, cfg, logger, req)
		},
		Version: version.Value(),
	})

	return root.ExecuteContext(ctx)
}

// runReview wires one review run from the loaded configuration and the
// parsed CLI request, then executes it.
func runReview(ctx context.Context, cfg config.Config, logger llmhttp.Logger, req cli.ReviewRequest) (domain.RunSummary, error) {
	failed := domain.RunSummary{Status: domain.RunStatusFailed}

	if err := cfg.Validate(); err != nil {
		return failed, err
	}

	retry := llmhttp.RetryConfig{
		MaxRetries:     cfg.HTTP.MaxRetries,
		InitialBackoff: mustDuration(cfg.HTTP.InitialBackoff),
		MaxBackoff:     mustDuration(cfg.HTTP.MaxBackoff),
		Multiplier:     cfg.HTTP.BackoffMultiplier,
	}

	logger.LogInfo(ctx, "review configured", map[string]interface{}{
		"model":   cfg.Model.ID,
		"baseURL": cfg.Model.BaseURL,
		"apiKey":  llmhttp.RedactAPIKey(cfg.Model.APIKey),
	})

	model := openai.NewClient(cfg.Model.APIKey, cfg.Model.ID, openai.Options{
		BaseURL:   cfg.Model.BaseURL,
		Timeout:   cfg.HTTPTimeout(),
		Retry:     &retry,
		Logger:    logger,
		MaxTokens: cfg.Model.MaxTokens,
	})

	extra, err := loadReports(req.Reports)
	if err != nil {
		return failed, err
	}

	var store *sqlite.Store
	if cfg.Store.Enabled {
		store, err = openStore(cfg.Store.Path)
		if err != nil {
			logger.LogWarning(ctx, "store disabled", map[string]interface{}{"error": err.Error()})
		} else {
			defer store.Close()
		}
	}

	deps := review.Deps{
		Model:         model,
		Logger:        logger,
		TokenBudget:   cfg.Review.ChunkTokenBudget,
		CountTokens:   llm.EstimateTokens,
		Concurrency:   cfg.Review.Concurrency,
		Timeout:       cfg.ReviewTimeout(),
		ExtraFindings: extra,
	}
	if store != nil {
		deps.Store = review.NewStoreAdapter(store)
	}

	localMode := req.BaseRef != ""
	if localMode {
		source := git.NewSource(req.RepoDir)
		headRef := req.HeadRef
		if headRef == "" {
			headRef, err = source.CurrentBranch()
			if err != nil {
				return failed, fmt.Errorf("resolve head ref: %w", err)
			}
		}
		deps.Source = review.NewLocalSource(func(ctx context.Context) (*domain.PullRequestContext, error) {
			return source.Fetch(ctx, req.BaseRef, headRef)
		})
		deps.Publisher = review.NewLocalPublisher(os.Stdout, store)
	} else {
		event, err := githubadapter.LoadEventContext()
		if err != nil {
			return failed, err
		}
		if cfg.GitHub.Token == "" {
			return failed, fmt.Errorf("config: GITHUB_TOKEN is required to review a pull request")
		}
		ghClient := githubadapter.NewClient(cfg.GitHub.Token)
		if cfg.GitHub.BaseURL != "" {
			ghClient.SetBaseURL(cfg.GitHub.BaseURL)
		}
		ghClient.SetRetryConfig(retry)

		deps.Source = review.NewAPISource(ghClient, event)
		deps.Publisher = review.NewGitHubPublisher(usecasegithub.NewPoster(ghClient, logger))
	}

	return review.NewOrchestrator(deps).Run(ctx)
}

func loadReports(flags []string) ([]domain.Finding, error) {
	var findings []domain.Finding
	for _, flag := range flags {
		tool, path, err := ingest.ParseReportFlag(flag)
		if err != nil {
			return nil, err
		}
		parsed, err := ingest.LoadReport(tool, path)
		if err != nil {
			return nil, err
		}
		findings = append(findings, parsed...)
	}
	return findings, nil
}

func openStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != ":" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return sqlite.NewStore(path)
}

func buildLogger(cfg config.LoggingConfig) *llmhttp.DefaultLogger {
	format := llmhttp.LogFormatJSON
	switch cfg.Format {
	case "human":
		format = llmhttp.LogFormatHuman
	case "json":
		format = llmhttp.LogFormatJSON
	default:
		// auto: human on a terminal, JSON lines when captured by CI.
		if term.IsTerminal(int(os.Stderr.Fd())) {
			format = llmhttp.LogFormatHuman
		}
	}
	return llmhttp.NewDefaultLogger(llmhttp.ParseLogLevel(cfg.Level), format)
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "prguard"))
	}
	return paths
}

// mustDuration parses a duration that config validation already vetted.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
