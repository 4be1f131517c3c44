package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"futurecast/cmd/futurecast/chat"
	"futurecast/internal/chatbot"
	"futurecast/internal/config"
	"futurecast/internal/engine"
	"futurecast/internal/forecast"
	"futurecast/internal/llm"
	"futurecast/internal/logging"
	"futurecast/internal/store"
)

var (
	// Global flags
	verbose bool
	apiKey  string
	timeout time.Duration

	// predict flags
	flagEffects     int
	flagDepth       int
	flagModel       string
	flagTemperature float64
	flagTopP        float64
	flagNoCache     bool
	flagNoSave      bool
	flagDedup       bool

	// load flags
	flagCastFile string

	// Logger
	logger *zap.Logger
)

// rootCmd generates a futurecast for the given scenario and drops into the
// interactive chat.
var rootCmd = &cobra.Command{
	Use:   "futurecast [scenario]",
	Short: "FutureCast - cascading effects forecasting",
	Long: `FutureCast predicts the cascading effects of a scenario.

Given a scenario, it recursively generates first-, second- and third-order
effects with the Gemini API, renders the resulting tree, and opens an
interactive chat for exploring and editing the forecast.

Examples:
  futurecast "Remote work becomes the global default"
  futurecast predict "AI tutors in every school" --depth 2 --effects 3
  futurecast load --file ~/.futurecast/saved/latest.json`,
	Args: cobra.ArbitraryArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if err := logging.Initialize(config.LogDir()); err != nil {
			logger.Warn("file logging disabled", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runPredict(cmd, args, true)
	},
}

// predictCmd generates and prints a forecast without the TUI.
var predictCmd = &cobra.Command{
	Use:   "predict [scenario]",
	Short: "Generate a futurecast and print it",
	Long: `Generates the full cascading-effects tree for a scenario and prints it
as a markmap-compatible markdown outline followed by the summary. The result
is saved under ~/.futurecast/saved/ unless --no-save is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPredict(cmd, args, false)
	},
}

// loadCmd opens a saved futurecast in the chat without any model calls.
var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a saved futurecast into the interactive chat",
	RunE:  runLoad,
}

// castsCmd lists saved futurecasts from the catalog.
var castsCmd = &cobra.Command{
	Use:   "casts",
	Short: "List saved futurecasts",
	RunE:  runCasts,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("futurecast %s\n", forecast.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Forecast generation timeout")

	for _, cmd := range []*cobra.Command{rootCmd, predictCmd} {
		cmd.Flags().IntVar(&flagEffects, "effects", 0, "Effects per node (default from config)")
		cmd.Flags().IntVar(&flagDepth, "depth", 0, "Maximum effect order (default from config)")
		cmd.Flags().StringVar(&flagModel, "model", "",
			fmt.Sprintf("Gemini model name (known: %s)", strings.Join(config.AvailableModels, ", ")))
		cmd.Flags().Float64Var(&flagTemperature, "temperature", -1, "Sampling temperature")
		cmd.Flags().Float64Var(&flagTopP, "top-p", -1, "Nucleus sampling probability")
		cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Bypass the response cache")
		cmd.Flags().BoolVar(&flagNoSave, "no-save", false, "Do not save the result")
		cmd.Flags().BoolVar(&flagDedup, "dedup", false, "Filter near-duplicate effects with embeddings")
	}

	loadCmd.Flags().StringVarP(&flagCastFile, "file", "f", "", "Saved futurecast to load (default: latest)")

	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(castsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration: file, environment, then
// command-line flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if flagEffects > 0 {
		cfg.NumEffects = flagEffects
	}
	if flagDepth > 0 {
		cfg.MaxDepth = flagDepth
	}
	if flagModel != "" {
		cfg.Model = flagModel
		cfg.ModelOverridden = true
	}
	if flagTemperature >= 0 {
		cfg.Temperature = flagTemperature
	}
	if flagTopP >= 0 {
		cfg.TopP = flagTopP
	}
	if flagNoCache {
		cfg.EnableCaching = false
	}
	if flagDedup {
		cfg.EnableDedup = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildEngine wires the client, cache, and deduper behind one engine.
func buildEngine(ctx context.Context, cfg *config.Config, progress engine.ProgressFunc) (*engine.Engine, error) {
	gemini, err := llm.NewGeminiClient(cfg)
	if err != nil {
		return nil, err
	}

	var client llm.Client = gemini
	if cfg.EnableCaching {
		cache, err := llm.NewCache(config.CacheDir(), cfg.CacheTTLDuration())
		if err != nil {
			logger.Warn("response cache disabled", zap.Error(err))
		} else {
			client = llm.NewCachedClient(gemini, cache, gemini.Params())
		}
	}

	opts := []engine.Option{}
	if progress != nil {
		opts = append(opts, engine.WithProgress(progress))
	}
	if cfg.EnableDedup {
		embedder, err := engine.NewGenAIEmbedder(ctx, cfg.APIKey, cfg.EmbeddingModel)
		if err != nil {
			logger.Warn("dedup disabled", zap.Error(err))
		} else {
			opts = append(opts, engine.WithDeduper(engine.NewDeduper(embedder, cfg.DedupThreshold)))
		}
	}

	return engine.New(client, cfg, opts...), nil
}

// signalContext cancels on SIGINT/SIGTERM and applies the global timeout.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// runPredict generates a forecast, saves and indexes it, and either prints
// it or opens the chat.
func runPredict(cmd *cobra.Command, args []string, interactive bool) error {
	scenario := strings.TrimSpace(strings.Join(args, " "))
	if scenario == "" {
		return fmt.Errorf("scenario must not be empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	progress := func(stage, message string) {
		logger.Info("forecast progress", zap.String("stage", stage), zap.String("detail", message))
		if !interactive {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", stage, message)
		}
	}

	eng, err := buildEngine(ctx, cfg, progress)
	if err != nil {
		return err
	}

	logger.Info("generating futurecast",
		zap.String("scenario", scenario),
		zap.String("model", cfg.Model),
		zap.Int("effects", cfg.NumEffects),
		zap.Int("depth", cfg.MaxDepth))

	tree, summary, err := eng.Generate(ctx, scenario)
	if err != nil {
		return fmt.Errorf("generating futurecast: %w", err)
	}

	fc := forecast.NewFuturecast(tree, summary)

	fileStore, err := store.NewFileStore(config.SavedDir())
	if err != nil {
		return err
	}
	if !flagNoSave {
		path, err := fileStore.Save(fc)
		if err != nil {
			return fmt.Errorf("saving futurecast: %w", err)
		}
		indexCast(path, fc)
		logger.Info("futurecast saved", zap.String("path", path))
		if !interactive {
			fmt.Fprintf(os.Stderr, "Saved to %s\n", path)
		}
	}

	if !interactive {
		fmt.Println(tree.Markmap())
		fmt.Println("## Summary")
		fmt.Println()
		fmt.Println(summary)
		return nil
	}

	return openChat(eng, fileStore, scenario, tree, summary)
}

// runLoad opens a saved futurecast in the chat. No model calls happen until
// the user edits or asks a question.
func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fileStore, err := store.NewFileStore(config.SavedDir())
	if err != nil {
		return err
	}
	fc, err := fileStore.Load(flagCastFile)
	if err != nil {
		return fmt.Errorf("loading futurecast: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Viewing a saved cast needs no model; without a key the chat still
	// opens and only edit/question requests report the missing key.
	eng, err := buildEngine(ctx, cfg, nil)
	if err != nil {
		if !errors.Is(err, llm.ErrNoAPIKey) {
			return err
		}
		logger.Warn("no API key configured; loaded cast is view-only", zap.Error(err))
		eng = viewOnlyEngine(cfg)
	}

	return openChat(eng, fileStore, fc.Tree.Context, fc.Tree, fc.Summary)
}

// viewOnlyEngine answers every model call with the missing-key error, which
// the chat layer surfaces conversationally.
func viewOnlyEngine(cfg *config.Config) *engine.Engine {
	return engine.New(llm.GenerateFunc(func(context.Context, string) (string, error) {
		return "", llm.ErrNoAPIKey
	}), cfg)
}

// runCasts rebuilds the catalog from disk and prints what it holds.
func runCasts(cmd *cobra.Command, args []string) error {
	fileStore, err := store.NewFileStore(config.SavedDir())
	if err != nil {
		return err
	}
	catalog, err := store.OpenCatalog(config.CatalogPath())
	if err != nil {
		return err
	}
	defer catalog.Close()

	if err := catalog.Rebuild(fileStore); err != nil {
		return err
	}
	entries, err := catalog.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No saved futurecasts. Run `futurecast predict \"<scenario>\"` first.")
		return nil
	}

	for _, e := range entries {
		fmt.Printf("%s  %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Context)
		fmt.Printf("    %s\n", e.Path)
		fmt.Printf("    %d effects, depth %d", e.EffectCount, e.MaxOrder)
		if e.Snippet != "" {
			fmt.Printf("  |  %s", e.Snippet)
		}
		fmt.Println()
	}
	return nil
}

// indexCast records a saved cast in the SQLite catalog. Catalog failures
// never block the forecast itself.
func indexCast(path string, fc *forecast.Futurecast) {
	catalog, err := store.OpenCatalog(config.CatalogPath())
	if err != nil {
		logger.Warn("catalog unavailable", zap.Error(err))
		return
	}
	defer catalog.Close()
	if err := catalog.Index(path, fc); err != nil {
		logger.Warn("catalog index failed", zap.Error(err))
	}
}

// openChat hands a loaded futurecast to the interactive TUI.
func openChat(eng *engine.Engine, fileStore *store.FileStore, scenario string, tree *forecast.Tree, summary string) error {
	state := chatbot.NewState()
	state.LoadFuturecast(scenario, tree, summary)
	dispatcher := chatbot.NewDispatcher(state, eng)

	watcherCtx, watcherCancel := context.WithCancel(context.Background())
	defer watcherCancel()

	var watcher *store.Watcher
	if w, err := store.NewWatcher(fileStore.Dir()); err != nil {
		logger.Warn("saved-directory watcher unavailable", zap.Error(err))
	} else if err := w.Start(watcherCtx); err != nil {
		logger.Warn("saved-directory watcher unavailable", zap.Error(err))
	} else {
		watcher = w
		defer watcher.Stop()
	}

	return chat.RunInteractiveChat(chat.Session{
		Dispatcher: dispatcher,
		State:      state,
		Store:      fileStore,
		Watcher:    watcher,
		Scenario:   scenario,
	})
}
