package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scopecraft/scopecraft/internal/config"
	"github.com/scopecraft/scopecraft/internal/core"
	"github.com/scopecraft/scopecraft/internal/llm"
	"github.com/scopecraft/scopecraft/internal/storage"
	"github.com/scopecraft/scopecraft/internal/web"
)

var serveAddr string

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Scopecraft API server",
		Long: `Start the Scopecraft API server.

Examples:
  scopecraft serve
  scopecraft serve --addr :9090`,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Generator.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is not set")
	}

	store, err := storage.NewStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	client := llm.NewClient(llm.Config{
		APIKey:      cfg.Generator.APIKey,
		Model:       cfg.Generator.Model,
		Diagnostics: store,
	})

	engine := core.NewEngine(store, client)
	defer engine.Close()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	server := web.NewServer(engine)
	fmt.Printf("Scopecraft listening on %s\n", addr)
	return server.Run(addr)
}
