package main

import (
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/penknife/pkg/api"
	grpcapi "github.com/lemonberrylabs/penknife/pkg/api/grpc"
	"github.com/lemonberrylabs/penknife/pkg/store"
	"github.com/lemonberrylabs/penknife/web"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST, gRPC and web UI server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 0, "HTTP server port (default 8787, env PORT)")
	cmd.Flags().Int("grpc-port", 0, "gRPC server port (default 8788, env GRPC_PORT)")
	cmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env HOST)")
	cmd.Flags().String("templates-dir", "", "Directory of templates to load and include from (env TEMPLATES_DIR)")
	cmd.Flags().String("db", "", "SQLite database file; in-memory when empty (env PENKNIFE_DB)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd, os.Stdout)

	port := envOrDefault("PORT", "8787")
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		port = fmt.Sprintf("%d", v)
	}

	grpcPort := envOrDefault("GRPC_PORT", "8788")
	if v, _ := cmd.Flags().GetInt("grpc-port"); v != 0 {
		grpcPort = fmt.Sprintf("%d", v)
	}

	host := envOrDefault("HOST", "0.0.0.0")
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		host = v
	}

	templatesDir := os.Getenv("TEMPLATES_DIR")
	if v, _ := cmd.Flags().GetString("templates-dir"); v != "" {
		templatesDir = v
	}

	dbPath := os.Getenv("PENKNIFE_DB")
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		dbPath = v
	}

	addr := fmt.Sprintf("%s:%s", host, port)
	grpcAddr := fmt.Sprintf("%s:%s", host, grpcPort)

	var s store.Store = store.NewMemory()
	if dbPath != "" {
		db, err := store.OpenSQLite(dbPath)
		if err != nil {
			return err
		}
		s = db
		logger.Info("using sqlite store", "path", dbPath)
	}
	defer s.Close()

	var includes fs.FS
	if templatesDir != "" {
		includes = os.DirFS(templatesDir)
	}
	renderer, err := api.NewRenderer(s, includes, logger)
	if err != nil {
		return err
	}
	server := api.New(renderer, logger)

	if templatesDir != "" {
		if err := server.LoadDir(templatesDir); err != nil {
			logger.Warn("failed to load templates directory", "dir", templatesDir, "error", err)
		}
	}

	ui, err := web.New(renderer, version, logger)
	if err != nil {
		logger.Warn("web UI disabled", "error", err)
	} else {
		ui.Register(server.App())
	}

	grpcServer := grpcapi.New(renderer, logger)
	go func() {
		logger.Info("gRPC server listening", "addr", grpcAddr)
		if err := grpcServer.Serve(grpcAddr); err != nil {
			logger.Error("gRPC server error", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		grpcServer.GracefulStop()
		if err := server.Shutdown(); err != nil {
			logger.Error("error during shutdown", "error", err)
		}
	}()

	if templatesDir == "" {
		logger.Info("API-only mode (no --templates-dir specified)")
	}
	logger.Info("penknife listening", "addr", addr, "templates", templatesDir)
	return server.Listen(addr)
}
