// Command bsky is a Bluesky posting client. It composes rich-text post
// records from a small markup dialect read on stdin, manages the PDS
// session, relays notification text to a Slack webhook, and can drive a
// browser over the DevTools protocol.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/blackmichael/bluesky-post/internal/bluesky"
	"github.com/blackmichael/bluesky-post/internal/browser"
	"github.com/blackmichael/bluesky-post/internal/compose"
	"github.com/blackmichael/bluesky-post/internal/config"
	"github.com/blackmichael/bluesky-post/internal/history"
	"github.com/blackmichael/bluesky-post/internal/slack"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("command required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "login":
		err = runLogin(rest, logger)
	case "logout":
		err = runLogout(rest, logger)
	case "post":
		err = runPost(rest, logger)
	case "history":
		err = runHistory(rest, logger)
	case "notify":
		err = runNotify(rest, logger)
	case "browse":
		err = runBrowse(rest, logger)
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command: %s", cmd)
	}

	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	return err
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: bsky <command> [flags]

Commands:
  login     authenticate with the PDS and cache the session
  logout    revoke and remove the cached session
  post      compose a post from stdin markup and create it
  history   list previously created posts
  notify    relay text to the Slack webhook
  browse    drive the DevTools browser session

Post markup, per line:
  !@handle/rkey      reply to an existing post (last one wins)
  !>handle/rkey      quote an existing post (last one wins)
  ![alt](file.png)   attach an image
  [text](url)        inline link
  <url>              autolink
  @handle            mention
  #tag               hashtag (all-digit tags stay literal)
`)
}

func newFlagSet(name string) (*pflag.FlagSet, *string) {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	configPath := flags.String("config", "", "config file path")
	return flags, configPath
}

func runLogin(args []string, logger *slog.Logger) error {
	flags, configPath := newFlagSet("login")
	identifier := flags.String("identifier", "", "account handle or email")
	pds := flags.String("pds", "", "PDS base URL")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *identifier != "" {
		cfg.Identifier = *identifier
	}
	if *pds != "" {
		cfg.PDS = *pds
	}

	if cfg.Identifier == "" {
		return fmt.Errorf("--identifier is required (or set BSKY_IDENTIFIER)")
	}
	password := os.Getenv("BSKY_APP_PASSWORD")
	if password == "" {
		return fmt.Errorf("BSKY_APP_PASSWORD is required; use an app password, not the account password")
	}

	client := bluesky.NewClient(cfg.PDS, cfg.SessionFile, logger)
	if err := client.Login(context.Background(), cfg.Identifier, password); err != nil {
		return err
	}

	fmt.Printf("logged in as %s (%s)\n", client.Handle(), client.DID())
	return nil
}

func runLogout(args []string, logger *slog.Logger) error {
	flags, configPath := newFlagSet("logout")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client := bluesky.NewClient(cfg.PDS, cfg.SessionFile, logger)
	if err := client.Restore(); err != nil {
		return err
	}
	if err := client.Logout(context.Background()); err != nil {
		return err
	}

	fmt.Println("logged out")
	return nil
}

func runPost(args []string, logger *slog.Logger) error {
	flags, configPath := newFlagSet("post")
	dryRun := flags.Bool("dry-run", false, "compose and print the record without posting")
	langs := flags.StringSlice("lang", nil, "language tags for the post")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(*langs) > 0 {
		cfg.Langs = *langs
	}

	lines, err := readLines(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	ctx := context.Background()
	client := bluesky.NewClient(cfg.PDS, cfg.SessionFile, logger)
	if err := client.Restore(); err != nil {
		if !*dryRun {
			return err
		}
		logger.Warn("no session, lookups will degrade", "error", err)
	}

	composer := compose.NewComposer(client, nil, cfg.Langs, logger)
	draft := composer.Compose(ctx, lines)

	if err := draft.Report(os.Stderr); err != nil {
		return err
	}

	if *dryRun {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(draft.Record)
	}

	blobs := make([]*bluesky.BlobRef, len(draft.Images))
	for i, img := range draft.Images {
		blob, err := client.UploadBlob(ctx, img.Data, img.ContentType)
		if err != nil {
			return fmt.Errorf("upload %s: %w", img.Path, err)
		}
		blobs[i] = blob
	}
	if err := draft.SpliceBlobs(blobs); err != nil {
		return err
	}

	ref, err := client.CreatePost(ctx, draft.Record)
	if err != nil {
		return err
	}
	fmt.Println(ref.URI)

	store, err := history.Open(cfg.HistoryFile)
	if err != nil {
		logger.Warn("history unavailable", "error", err)
		return nil
	}
	defer store.Close()

	entry := &history.Entry{
		URI:       ref.URI,
		CID:       ref.CID,
		Text:      draft.Record.Text,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Append(ctx, entry); err != nil {
		logger.Warn("failed to record history", "error", err)
	}
	return nil
}

func runHistory(args []string, logger *slog.Logger) error {
	flags, configPath := newFlagSet("history")
	limit := flags.Int("limit", 20, "maximum entries to list")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := history.Open(cfg.HistoryFile)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(context.Background(), *limit)
	if err != nil {
		return err
	}

	for _, e := range entries {
		fmt.Printf("%s  %s\n", e.CreatedAt.Format(time.RFC3339), e.URI)
		fmt.Printf("    %s\n", strings.ReplaceAll(strings.TrimRight(e.Text, "\n"), "\n", "\n    "))
	}
	return nil
}

func runNotify(args []string, logger *slog.Logger) error {
	flags, configPath := newFlagSet("notify")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.SlackWebhookURL == "" {
		return fmt.Errorf("slack_webhook_url is not configured (or set SLACK_WEBHOOK_URL)")
	}

	text := strings.Join(flags.Args(), " ")
	if text == "" {
		lines, err := readLines(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = strings.Join(lines, "\n")
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("nothing to send")
	}

	return slack.NewClient(cfg.SlackWebhookURL, logger).Notify(context.Background(), text)
}

func runBrowse(args []string, logger *slog.Logger) error {
	flags, configPath := newFlagSet("browse")
	pageURL := flags.String("url", "", "URL to open")
	screenshot := flags.String("screenshot", "", "write a PNG screenshot to this file")
	evalExpr := flags.String("eval", "", "JavaScript expression to evaluate")
	timeout := flags.Duration("timeout", 30*time.Second, "overall deadline for the browser session")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if *pageURL == "" && *evalExpr == "" && *screenshot == "" {
		return fmt.Errorf("nothing to do: pass --url, --eval, or --screenshot")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := browser.Connect(ctx, cfg.BrowserURL, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	if *pageURL != "" {
		if err := client.Navigate(ctx, *pageURL); err != nil {
			return err
		}
	}
	if *evalExpr != "" {
		out, err := client.Evaluate(ctx, *evalExpr)
		if err != nil {
			return err
		}
		fmt.Println(out)
	}
	if *screenshot != "" {
		data, err := client.Screenshot(ctx)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*screenshot, data, 0o644); err != nil {
			return fmt.Errorf("write screenshot: %w", err)
		}
		fmt.Fprintf(os.Stderr, "wrote %d bytes to %s\n", len(data), *screenshot)
	}
	return nil
}

// readLines reads r to EOF, returning its lines without terminators.
func readLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
