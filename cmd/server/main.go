package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/vidfetch-go/api"
	"github.com/yourusername/vidfetch-go/internal/app"
	"github.com/yourusername/vidfetch-go/internal/domain"
	"github.com/yourusername/vidfetch-go/internal/infrastructure"
	"github.com/yourusername/vidfetch-go/pkg/logger"
)

var (
	serverMode = flag.Bool("server-mode", false, "Internal flag: run in server mode (called by daemon)")
	configPath = flag.String("config", "", "Path to config file")
	foreground = flag.Bool("foreground", false, "Run in the foreground instead of daemonizing")
)

func main() {
	flag.Parse()

	// If not in server mode, run as daemon
	if !*serverMode && !*foreground {
		startAsDaemon()
		return
	}

	// Run as server (called by daemon)
	runServer()
}

// startAsDaemon forks the current process and runs the server in background
func startAsDaemon() {
	// Get the executable path
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	// Fork the process
	args := []string{"-server-mode"}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}
	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session
	}

	// Redirect output to /dev/null
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open /dev/null: %v\n", err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	// Start the child process
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
	os.Exit(0)
}

func runServer() {
	// Load configuration
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting vidfetch server",
		zap.String("version", "1.0.0"),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("download_dir", config.Download.Dir))

	// Create directories
	if err := createDirectories(config); err != nil {
		log.Fatal("Failed to create directories", zap.Error(err))
	}

	// Initialize snapshot store
	var store domain.SnapshotStore
	if config.Snapshot.Enabled {
		sqliteStore, err := infrastructure.NewSQLiteSnapshotStore(config.Snapshot.DatabasePath)
		if err != nil {
			log.Fatal("Failed to initialize snapshot store", zap.Error(err))
		}
		defer sqliteStore.Close()
		store = sqliteStore
	}

	// Initialize downloader
	runner := infrastructure.NewRunner(log)
	downloader := infrastructure.NewYTDLPDownloader(&config.Tools, &config.Download, runner, log)

	// Initialize engine and restore persisted tasks
	engine := app.NewEngine(config, downloader, store, infrastructure.Classify, log)
	if err := engine.Restore(); err != nil {
		log.Error("Failed to restore tasks", zap.Error(err))
	}

	// Setup HTTP router
	router := api.SetupRouter(engine, log)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal")

	log.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the engine: terminates live downloads, snapshots their state
	if err := engine.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping engine", zap.Error(err))
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

func createDirectories(config *domain.Config) error {
	dirs := []string{
		config.Download.Dir,
	}
	if config.Snapshot.Enabled {
		dirs = append(dirs, filepath.Dir(config.Snapshot.DatabasePath))
	}

	for _, dir := range dirs {
		// Skip empty paths (may be optional paths not configured)
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
