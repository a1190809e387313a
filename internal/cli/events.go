package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var jsonOutput bool
	var server string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail the intent stream sent to game servers",
		Long: `Connect to the game bridge event stream with the bridge token and print
intents as they arrive. The connection counts as a game server while open.

Events are named after the intent kind:
  - disconnect: Kick a player
  - show_login_link: Show the login link to an unlinked player
  - show_code: Show a one-time code to an unlinked player
  - title, action_bar: Status prompts

Press Ctrl+C to disconnect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return streamEvents(ctx, cmd.OutOrStdout(), server, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")
	cmd.Flags().StringVar(&server, "name", "linkguardctl", "Game server name to register as")
	cmd.Flags().StringVar(&cfg.BridgeToken, "bridge-token", cfg.BridgeToken, "Bridge token (env: LINKGUARD_BRIDGE_TOKEN)")

	return cmd
}

// SSEEvent represents a parsed SSE event
type SSEEvent struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
	Data  string    `json:"data"`
}

func streamEvents(ctx context.Context, w io.Writer, server string, jsonOutput bool) error {
	target := strings.TrimSuffix(cfg.ServerURL, "/") + "/api/v1/game/events?server=" + url.QueryEscape(server)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if cfg.BridgeToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.BridgeToken)
	}

	// No timeout for SSE
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if !jsonOutput {
		_, _ = fmt.Fprintf(w, "Connected as %s\n", server)
	}

	for evt := range parseEvents(resp.Body) {
		printEvent(w, evt, jsonOutput)
	}

	if ctx.Err() == nil && !jsonOutput {
		_, _ = fmt.Fprintln(w, "Disconnected")
	}
	return nil
}

// parseEvents yields events from an SSE stream until it ends. Comment lines
// (keepalives) are skipped.
func parseEvents(r io.Reader) func(yield func(SSEEvent) bool) {
	return func(yield func(SSEEvent) bool) {
		scanner := bufio.NewScanner(r)
		var currentEvent string
		var dataLines []string

		for scanner.Scan() {
			line := scanner.Text()

			switch {
			case strings.HasPrefix(line, "event: "):
				currentEvent = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
			case line == "":
				if currentEvent != "" {
					evt := SSEEvent{Time: time.Now(), Event: currentEvent, Data: strings.Join(dataLines, "\n")}
					if !yield(evt) {
						return
					}
				}
				currentEvent = ""
				dataLines = nil
			}
		}
	}
}

func printEvent(w io.Writer, evt SSEEvent, jsonOutput bool) {
	if jsonOutput {
		jsonData, _ := json.Marshal(evt)
		_, _ = fmt.Fprintln(w, string(jsonData))
		return
	}

	timestamp := evt.Time.Format("2006-01-02 15:04:05")
	// Truncate data if it's too long for display
	displayData := evt.Data
	if len(displayData) > 100 {
		displayData = displayData[:100] + "..."
	}
	displayData = strings.ReplaceAll(displayData, "\n", " ")
	_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", timestamp, evt.Event, displayData)
}
