package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/vulnaq/internal/common"
	"github.com/ternarybob/vulnaq/internal/services/store"
)

// vulnaq-mcp exposes the vulnerability database tools over MCP stdio so
// external agents can query the same data the in-process tool loop uses.
func main() {
	configPath := os.Getenv("VULNAQ_CONFIG")
	if configPath == "" {
		if _, err := os.Stat("vulnaq.toml"); err == nil {
			configPath = "vulnaq.toml"
		}
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	csvDir := filepath.Join(config.Data.Dir, "csv")
	storeService, err := store.NewStore(csvDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load vulnerability database")
	}
	defer storeService.Close()

	mcpServer := server.NewMCPServer(
		"vulnaq",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createGetVulnerabilityTool(), handleGetVulnerability(storeService, logger))
	mcpServer.AddTool(createSearchVulnerabilitiesTool(), handleSearchVulnerabilities(storeService, logger))
	mcpServer.AddTool(createListPackagesTool(), handleListPackages(storeService, logger))
	mcpServer.AddTool(createGetStatisticsTool(), handleGetStatistics(storeService, logger))

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
