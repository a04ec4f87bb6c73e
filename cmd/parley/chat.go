package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/config"
)

var chatSessionID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive REPL against the local pipeline",
	Long: `Start an interactive chat session in the terminal, running the same
resolution and scheduling pipeline as the HTTP server.

Type a message and press enter. Commands:
  /session   print the current session ID
  /quit      exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "resume an existing session by ID")
}

func runChat() error {
	_ = godotenv.Load()

	// Keep structured logs off the REPL output.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	banner := color.New(color.FgCyan, color.Bold)
	prompt := color.New(color.FgGreen, color.Bold)
	replyColor := color.New(color.FgWhite)
	meta := color.New(color.FgHiBlack)
	errColor := color.New(color.FgRed)

	banner.Println("parley — type a question, /quit to exit")

	sessionID := chatSessionID
	scanner := bufio.NewScanner(os.Stdin)
	for {
		prompt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit", line == "/exit":
			return nil
		case line == "/session":
			if sessionID == "" {
				meta.Println("no session yet; send a message first")
			} else {
				meta.Println(sessionID)
			}
			continue
		}

		result, err := rt.runner.HandleTurn(ctx, sessionID, line)
		if err != nil {
			errColor.Printf("error: %v\n", err)
			if result == nil {
				continue
			}
		}
		sessionID = result.SessionID

		replyColor.Println(result.Reply)
		meta.Printf("[intent=%s confidence=%.2f tier=%s elapsed=%s]\n",
			result.Intent, result.Confidence, result.Tier, result.Elapsed.Round(time.Millisecond))
	}

	return scanner.Err()
}
