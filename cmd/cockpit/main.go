package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cockpit/internal/client"
	"cockpit/internal/config"
	"cockpit/internal/keychain"
	"cockpit/internal/logging"
	"cockpit/internal/store"
	"cockpit/internal/transport"
	"cockpit/internal/types"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "cockpit:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("cockpit", flag.ContinueOnError)
	workspace := flags.String("workspace", "", "workspace id to operate on")
	verbose := flags.Bool("verbose", false, "enable debug logging")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		return fmt.Errorf("usage: cockpit [flags] <list|tail|send|token> [args]")
	}
	command := flags.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level := logging.ParseLevel(cfg.LogLevel())
	if *verbose {
		level = logging.Debug
	}
	logger := logging.New(os.Stderr, level)

	tokenPath, err := config.TokenFallbackPath()
	if err != nil {
		return err
	}
	tokens := keychain.NewTokenStore(tokenPath)

	if command == "token" {
		return runToken(tokens, flags.Args()[1:])
	}

	token, err := tokens.Load()
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}

	dbPath, err := config.OverlayDBPath()
	if err != nil {
		return err
	}
	repo, err := store.OpenBolt(dbPath)
	if err != nil {
		return fmt.Errorf("open overlays: %w", err)
	}

	c := client.New(client.Options{
		Config: &cfg,
		Logger: logger,
		Repo:   repo,
		Token:  token,
		OnConnState: func(state transport.ConnState) {
			logger.Info("conn_state", logging.F("state", string(state)))
		},
		OnApprovalPending: func(req *types.ApprovalRequest) {
			fmt.Printf("approval needed [%s]: %s\n", req.RequestID, req.Method)
		},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err = c.Connect(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer c.Disconnect()

	switch command {
	case "list":
		return runList(c, *workspace)
	case "tail":
		return runTail(c, flags.Args()[1:])
	case "send":
		return runSend(c, flags.Args()[1:])
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runToken(tokens *keychain.TokenStore, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: cockpit token <set|clear> [value]")
	}
	switch args[0] {
	case "set":
		if len(args) < 2 {
			return fmt.Errorf("usage: cockpit token set <value>")
		}
		return tokens.Save(args[1])
	case "clear":
		return tokens.Delete()
	default:
		return fmt.Errorf("unknown token command %q", args[0])
	}
}

func runList(c *client.Client, workspaceID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	listed, err := c.ListThreads(ctx, workspaceID)
	if err != nil {
		return err
	}
	for _, t := range listed {
		marker := " "
		if t.PinnedAt != nil {
			marker = "*"
		}
		fmt.Printf("%s %s  %s\n", marker, t.ID, t.DisplayName())
	}
	return nil
}

func runTail(c *client.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: cockpit tail <thread-id>")
	}
	threadID := args[0]
	c.SetActiveThread(threadID)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := c.ResumeThread(ctx, threadID, false)
	cancel()
	if err != nil {
		return err
	}
	if t := c.Store().Thread(threadID); t != nil {
		for _, item := range t.Items {
			printItem(item)
		}
	}

	// Follow live output until interrupted.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done
	return nil
}

func runSend(c *client.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: cockpit send <thread-id> <text...>")
	}
	threadID := args[0]
	text := strings.Join(args[1:], " ")
	id := c.SendMessage(threadID, text, nil, "")
	fmt.Println("queued", id)

	// Wait for the turn to settle before exiting so the send is not lost.
	deadline := time.Now().Add(2 * time.Minute)
	for time.Now().Before(deadline) {
		time.Sleep(500 * time.Millisecond)
		t := c.Store().Thread(threadID)
		if t == nil {
			continue
		}
		if !t.IsProcessing && len(c.Store().QueuedMessages(threadID)) == 0 {
			if last := c.Store().LastAgentMessage(threadID); last != "" {
				fmt.Println(last)
			}
			return nil
		}
	}
	return fmt.Errorf("timed out waiting for turn to finish")
}

func printItem(item *types.ConversationItem) {
	switch item.Kind {
	case types.ItemKindMessage:
		if item.Message != nil {
			fmt.Printf("[%s] %s\n", item.Message.Role, item.Message.Text)
		}
	case types.ItemKindReasoning:
		if item.Reasoning != nil && item.Reasoning.Summary != "" {
			fmt.Printf("[reasoning] %s\n", item.Reasoning.Summary)
		}
	case types.ItemKindTool:
		if item.Tool != nil {
			fmt.Printf("[%s] %s (%s)\n", item.Tool.ToolType, item.Tool.Title, item.Tool.Status)
		}
	case types.ItemKindReview:
		if item.Review != nil {
			fmt.Printf("[review %s] %s\n", item.Review.State, item.Review.Text)
		}
	case types.ItemKindDiff:
		if item.Diff != nil {
			fmt.Printf("[diff] %s\n", item.Diff.Title)
		}
	}
}
