package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/guiyumin/mediadrop/internal/core/config"
	"github.com/guiyumin/mediadrop/internal/core/logger"
	"github.com/guiyumin/mediadrop/internal/server"
	"github.com/spf13/cobra"
)

var (
	servePort    int
	serveRoot    string
	serveDaemon  bool
	serveJournal bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [stop|status]",
	Short: "Start the HTTP download API",
	Long: `Start an HTTP server that acquires media on request and serves each file once.

Examples:
  mediadrop serve              # Start server on port 8000
  mediadrop serve -p 9000      # Start server on port 9000
  mediadrop serve -d           # Start server as background daemon
  mediadrop serve -o ~/drops   # Use a custom storage root
  mediadrop serve stop         # Stop the daemon

API Endpoints (X-API-Key header required except /health):
  GET  /health                 # Health check
  POST /download               # Acquire and register, returns file ids
  GET  /download?url=...       # Acquire and stream the file directly
  GET  /files/:id              # Fetch a registered file once
  GET  /diag/instagram         # Instagram session diagnostics`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"stop", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			switch args[0] {
			case "stop":
				return stopDaemon()
			case "status":
				return daemonStatus()
			default:
				return fmt.Errorf("unknown serve command: %s", args[0])
			}
		}
		return runServe(cmd)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP listen port (default: 8000)")
	serveCmd.Flags().StringVarP(&serveRoot, "output", "o", "", "storage root for task directories")
	serveCmd.Flags().BoolVarP(&serveDaemon, "daemon", "d", false, "run as background daemon")
	serveCmd.Flags().BoolVar(&serveJournal, "journal", false, "persist the file registry across restarts")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	cfg := loadConfig()

	// flag > env > config > default
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if serveRoot != "" {
		root, err := filepath.Abs(expandHome(serveRoot))
		if err != nil {
			return err
		}
		cfg.Storage.Root = root
	}
	if cmd.Flags().Changed("journal") {
		cfg.Storage.Journal = serveJournal
	}

	if serveDaemon {
		return startDaemon(cfg.Server.Port, cfg.Storage.Root, cfg.Storage.Journal)
	}
	return runServer(cfg)
}

// runServer builds the server for cfg and blocks until SIGINT or SIGTERM.
func runServer(cfg *config.Config) error {
	deps, err := server.Build(cfg)
	if err != nil {
		return err
	}
	srv := server.New(cfg, deps)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Get("Server").Emit(logger.INFO, "Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	return srv.Start()
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func startDaemon(port int, root string, journal bool) error {
	// Check if already running
	if pid := getDaemonPID(); pid > 0 {
		if processExists(pid) {
			return fmt.Errorf("daemon already running (PID %d)", pid)
		}
		// Stale PID file, remove it
		os.Remove(getPIDFilePath())
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"serve", "-p", strconv.Itoa(port), "-o", root}
	if journal {
		args = append(args, "--journal")
	}
	if configFile != "" {
		args = append(args, "--config", configFile)
	}

	logFile, err := os.OpenFile(getLogFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil

	// Detach from parent
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	if err := savePID(cmd.Process.Pid); err != nil {
		cmd.Process.Kill()
		logFile.Close()
		return fmt.Errorf("failed to save PID: %w", err)
	}

	fmt.Printf("mediadrop server started as daemon (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  Port: %d\n", port)
	fmt.Printf("  Storage: %s\n", root)
	fmt.Printf("  Log: %s\n", getLogFilePath())
	fmt.Printf("\nUse 'mediadrop serve stop' to stop the daemon\n")

	return nil
}

func stopDaemon() error {
	pid := getDaemonPID()
	if pid <= 0 {
		return fmt.Errorf("daemon is not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		os.Remove(getPIDFilePath())
		return fmt.Errorf("daemon process not found")
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		os.Remove(getPIDFilePath())
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	// Wait for process to exit
	for i := 0; i < 30; i++ {
		if !processExists(pid) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	os.Remove(getPIDFilePath())
	fmt.Println("Daemon stopped")
	return nil
}

func daemonStatus() error {
	pid := getDaemonPID()
	if pid <= 0 {
		fmt.Println("Daemon is not running")
		return nil
	}

	if !processExists(pid) {
		os.Remove(getPIDFilePath())
		fmt.Println("Daemon is not running (stale PID file removed)")
		return nil
	}

	fmt.Printf("Daemon is running (PID %d)\n", pid)
	fmt.Printf("Log file: %s\n", getLogFilePath())
	return nil
}

// Helper functions for PID file management

func getPIDFilePath() string {
	configDir, err := config.ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "mediadrop-serve.pid")
	}
	return filepath.Join(configDir, "serve.pid")
}

func getLogFilePath() string {
	configDir, err := config.ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "mediadrop-serve.log")
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return filepath.Join(os.TempDir(), "mediadrop-serve.log")
	}
	return filepath.Join(configDir, "serve.log")
}

func savePID(pid int) error {
	pidFile := getPIDFilePath()
	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFile, []byte(strconv.Itoa(pid)), 0644)
}

func getDaemonPID() int {
	data, err := os.ReadFile(getPIDFilePath())
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds, so we need to send signal 0 to check
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
