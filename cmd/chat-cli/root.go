package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"contextrelay/pkg/clients"
)

// options 全局参数
type options struct {
	server      string
	sessionID   string
	sessionFile string
	timeout     time.Duration
	verbose     bool
}

// app 命令运行时依赖
type app struct {
	opts   *options
	client *clients.ChatClient
	logger *zap.Logger
	in     io.Reader
	out    io.Writer
	// interrupt 生成回复期间监听 Ctrl+C
	interrupt interruptFunc
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &options{}
	a := &app{opts: opts, in: in, out: out, interrupt: notifyInterrupt}

	root := &cobra.Command{
		Use:   "chat-cli",
		Short: "Terminal client for chat-service",
		Long: `chat-cli talks to chat-service over HTTP.

Replies are streamed as they are generated; press Ctrl+C during a reply
to stop the generation. Long conversations are compressed by the service
and the compression report is available with the stats command.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewDevelopmentConfig()
			config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			if opts.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			a.client = clients.NewChatClient(clients.ChatClientConfig{
				BaseURL: opts.server,
				Timeout: opts.timeout,
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("CHAT_SERVER", "http://localhost:8080"), "chat-service base URL")
	root.PersistentFlags().StringVar(&opts.sessionID, "session", "", "session id (defaults to the saved one)")
	root.PersistentFlags().StringVar(&opts.sessionFile, "session-file", defaultSessionFile(), "file that remembers the current session id")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "timeout for non-streaming requests")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "chat",
			Short: "Start an interactive chat",
			Long: `Start an interactive chat in the current session.

Commands inside the chat:
  /stats  - show the compression and cost report
  /reset  - clear the session history
  /new    - start a new session
  /exit   - quit`,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runChat(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Print the session report",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runStats(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Clear the session history",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runReset(cmd.Context())
			},
		},
	)

	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chat-session"
	}
	return filepath.Join(home, ".config", "chat-cli", "session")
}
