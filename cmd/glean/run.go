package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cortexlib/glean/internal/checkpoint"
	"github.com/cortexlib/glean/internal/config"
	"github.com/cortexlib/glean/internal/extract"
	"github.com/cortexlib/glean/internal/gate"
	"github.com/cortexlib/glean/internal/home"
	"github.com/cortexlib/glean/internal/ingest"
	"github.com/cortexlib/glean/internal/llmcall"
	"github.com/cortexlib/glean/internal/metrics"
	"github.com/cortexlib/glean/internal/pipeline"
	"github.com/cortexlib/glean/internal/providers"
	"github.com/cortexlib/glean/internal/types"
)

var (
	runTitle   string
	runModel   string
	runWorkers int
	runFresh   bool
)

// runOutput is the aggregated run artifact written to the data directory.
type runOutput struct {
	BookID      string                `json:"book_id"`
	Title       string                `json:"title"`
	Model       string                `json:"model"`
	GeneratedAt time.Time             `json:"generated_at"`
	Chapters    []types.ChapterResult `json:"chapters"`
}

var runCmd = &cobra.Command{
	Use:   "run <path>",
	Short: "Extract structured knowledge from a book or document",
	Long: `Run the extraction pipeline against a .txt, .md, or .pdf file.

The document is split into chapters and chunks, each chunk is sent to the
configured LLM provider, and validated results are aggregated per chapter.
Completed chunks are checkpointed, so rerunning the same file skips work
that already succeeded. Use --fresh to discard existing checkpoints.

Examples:
  glean run book.txt
  glean run notes.md --title "Field Notes" --workers 5
  glean run manual.pdf --model gpt-4o --fresh`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		if cfg.Provider.Type != providers.OpenAIName {
			return fmt.Errorf("unsupported provider type %q", cfg.Provider.Type)
		}
		apiKey := cfg.ResolvedAPIKey()
		if apiKey == "" {
			return fmt.Errorf("no API key configured: set provider.api_key or OPENAI_API_KEY")
		}

		book, err := ingest.Ingest(ingest.Request{
			Path:   args[0],
			Title:  runTitle,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		logger.Info("ingested book",
			"book_id", book.BookID,
			"title", book.Title,
			"chapters", len(book.Chapters))

		if runFresh {
			if err := os.RemoveAll(h.BookCheckpointsDir(book.BookID)); err != nil {
				return fmt.Errorf("failed to clear checkpoints: %w", err)
			}
		}
		if err := h.EnsureBookCheckpointsDir(book.BookID); err != nil {
			return err
		}

		store, err := checkpoint.NewFileStore(h.BookCheckpointsDir(book.BookID), logger)
		if err != nil {
			return err
		}

		recorder, err := llmcall.NewRecorder(h.CallLogPath(book.BookID), logger)
		if err != nil {
			return err
		}
		defer recorder.Close()

		model := cfg.Provider.Model
		if runModel != "" {
			model = runModel
		}
		workers := cfg.Pipeline.NumWorkers
		if runWorkers > 0 {
			workers = runWorkers
		}

		collector := metrics.NewCollector()
		ctrl := gate.New(gate.Config{
			Initial:            cfg.Gate.InitialConcurrency,
			Min:                cfg.Gate.MinConcurrency,
			Max:                cfg.Gate.MaxConcurrency,
			AdjustEvery:        cfg.Gate.AdjustEvery,
			RateLimitThreshold: cfg.Gate.RateLimitThreshold,
			LatencyWindowMin:   cfg.Gate.LatencyWindowMin,
			LatencyLower:       cfg.Gate.LatencyLower(),
			LatencyUpper:       cfg.Gate.LatencyUpper(),
			Logger:             logger,
		})

		gen := providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:      apiKey,
			Model:       model,
			Temperature: cfg.Provider.Temperature,
			Timeout:     cfg.Provider.Timeout(),
		})

		ext, err := extract.New(extract.Config{
			Generator:   gen,
			Gate:        ctrl,
			Checkpoints: store,
			Metrics:     collector,
			Recorder:    recorder,
			BookID:      book.BookID,
			Model:       model,
			Timeout:     cfg.Provider.Timeout(),
			Logger:      logger,
		})
		if err != nil {
			return err
		}

		proc := pipeline.NewChapterProcessor(pipeline.ChapterConfig{
			Extractor:    ext,
			Checkpoints:  store,
			Metrics:      collector,
			MaxChunkSize: cfg.Pipeline.MaxChunkSize,
			Logger:       logger,
		})

		runner, err := pipeline.NewRunner(pipeline.RunnerConfig{
			Processor:      proc,
			Metrics:        collector,
			NumWorkers:     workers,
			CollectTimeout: cfg.Pipeline.CollectTimeout(),
			Logger:         logger,
		})
		if err != nil {
			return err
		}

		results, runErr := runner.Run(ctx, book.Chapters)

		// Write whatever we got, even on total failure, so partial
		// progress is inspectable.
		if len(results) > 0 {
			out := runOutput{
				BookID:      book.BookID,
				Title:       book.Title,
				Model:       model,
				GeneratedAt: time.Now().UTC(),
				Chapters:    results,
			}
			if err := writeResults(h.ResultsPath(book.BookID), out); err != nil {
				return err
			}
			logger.Info("wrote results", "path", h.ResultsPath(book.BookID))
		}

		fmt.Println(collector.Snapshot().Report())

		if runErr != nil {
			if errors.Is(runErr, pipeline.ErrAllChaptersFailed) {
				return fmt.Errorf("extraction failed for every chapter: %w", runErr)
			}
			return runErr
		}
		return nil
	},
}

func writeResults(path string, out runOutput) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

func init() {
	runCmd.Flags().StringVar(&runTitle, "title", "", "Book title (default: derived from filename)")
	runCmd.Flags().StringVar(&runModel, "model", "", "Override the configured model")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Override the configured chapter worker count")
	runCmd.Flags().BoolVar(&runFresh, "fresh", false, "Discard existing checkpoints and start over")

	rootCmd.AddCommand(runCmd)
}
