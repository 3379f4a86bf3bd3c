package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vulnaq/internal/common"
	"github.com/ternarybob/vulnaq/internal/models"
	"github.com/ternarybob/vulnaq/internal/services/advisories"
	"github.com/ternarybob/vulnaq/internal/services/index"
	"github.com/ternarybob/vulnaq/internal/services/llm"
	"github.com/ternarybob/vulnaq/internal/services/rag"
	"github.com/ternarybob/vulnaq/internal/services/store"
)

var (
	configPath   = flag.String("config", "", "Configuration file path")
	configPathC  = flag.String("c", "", "Configuration file path (shorthand)")
	dataDir      = flag.String("data", "", "Data directory with advisories/ and csv/ (overrides config)")
	modelSpec    = flag.String("model", "", "Model spec as provider:model, e.g. gemini:gemini-3-flash-preview")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	config *common.Config
	logger arbor.ILogger
)

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Vulnaq version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner
	path := *configPath
	if *configPathC != "" {
		path = *configPathC
	}
	if path == "" {
		// Auto-discover config file in the working directory
		if _, err := os.Stat("vulnaq.toml"); err == nil {
			path = "vulnaq.toml"
		}
	}

	var err error
	config, err = common.LoadFromFile(path)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Str("path", path).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	if *dataDir != "" {
		config.Data.Dir = *dataDir
	}
	if *modelSpec != "" {
		config.LLM.Model = *modelSpec
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.LoadVersionFromFile())

	advisoriesDir := filepath.Join(config.Data.Dir, "advisories")
	csvDir := filepath.Join(config.Data.Dir, "csv")
	for _, dir := range []string{advisoriesDir, csvDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			logger.Fatal().Str("dir", dir).Msg("Data directory is missing a required subdirectory")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agent, cleanup, err := buildAgent(ctx, advisoriesDir, csvDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
		os.Exit(1)
	}
	defer cleanup()

	runREPL(ctx, agent)
}

// buildAgent wires the full pipeline: providers, corpus, index,
// database, router, handlers and synthesizer.
func buildAgent(ctx context.Context, advisoriesDir, csvDir string) (*rag.Agent, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	llmService, err := llm.NewLLMService(config, config.LLM.Model, logger)
	if err != nil {
		return nil, cleanup, err
	}
	cleanups = append(cleanups, func() { llmService.Close() })

	embedService, err := llm.NewEmbeddingService(config, llmService, logger)
	if err != nil {
		return nil, cleanup, err
	}
	if embedService != llmService {
		cleanups = append(cleanups, func() { embedService.Close() })
	}

	advisoryService, err := advisories.NewService(advisoriesDir, logger)
	if err != nil {
		return nil, cleanup, err
	}

	if config.Storage.Badger.ResetOnStartup {
		if err := index.RemoveChunkStorage(config.Storage.Badger.Path); err != nil {
			return nil, cleanup, fmt.Errorf("failed to reset chunk index: %w", err)
		}
		logger.Info().Str("path", config.Storage.Badger.Path).Msg("Chunk index reset")
	}

	chunkStorage, err := index.OpenChunkStorage(config.Storage.Badger.Path)
	if err != nil {
		return nil, cleanup, err
	}
	cleanups = append(cleanups, func() { chunkStorage.Close() })

	indexService := index.NewService(advisoryService, embedService, chunkStorage, logger)
	if err := indexService.Store(ctx); err != nil {
		return nil, cleanup, err
	}

	storeService, err := store.NewStore(csvDir, logger)
	if err != nil {
		return nil, cleanup, err
	}
	cleanups = append(cleanups, func() { storeService.Close() })

	router := rag.NewRouter(llmService, advisoryService, storeService.SchemaDescription(), logger)
	advisoriesRag := rag.NewAdvisoriesRag(llmService, indexService, config.RAG.TopK, logger)
	databaseRag := rag.NewDatabaseRag(llmService, storeService, config.RAG.MaxIterations, logger)
	synthesizer := rag.NewSynthesizer(llmService, logger)

	agent := rag.NewAgent(router, advisoriesRag, databaseRag, synthesizer, logger)

	logger.Info().
		Str("model", llmService.ModelName()).
		Int("advisories", advisoryService.Len()).
		Msg("Ready")

	return agent, cleanup, nil
}

// runREPL reads queries from stdin until EOF, interrupt, or an exit
// command.
func runREPL(ctx context.Context, agent *rag.Agent) {
	fmt.Println("Ask about security vulnerabilities (type 'exit' to quit).")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		if ctx.Err() != nil {
			return
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			return
		}

		result, err := agent.ProcessUserQuery(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("Query failed")
			fmt.Println("Sorry, that query failed. Check the logs for details.")
			continue
		}

		fmt.Println()
		fmt.Println(result.Answer)
		if len(result.Sources) > 0 {
			fmt.Println()
			fmt.Println(formatSources(result.Sources))
		}
		fmt.Println()
	}
}

// formatSources lists advisory source references in retrieval rank order
func formatSources(sources []models.SourceReference) string {
	lines := []string{"Sources:"}
	for _, source := range sources {
		lines = append(lines, fmt.Sprintf("- %s / %s (%s)", source.AdvisoryTitle, source.SectionHeader, source.AdvisoryFilename))
	}
	return strings.Join(lines, "\n")
}
