package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/runwatch/internal/hub"
	"github.com/xiaot623/gogo/runwatch/internal/state"
)

var watchAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the agent view of a running runwatch server",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "ws://localhost:8080/ws", "Observer websocket address")
	rootCmd.AddCommand(watchCmd)
}

// snapshotMessage is the observer envelope with its payload decoded.
type snapshotMessage struct {
	Type string         `json:"type"`
	Ts   int64          `json:"ts"`
	Data state.Snapshot `json:"data"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, watchAddr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", watchAddr, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "connected to %s\n", watchAddr)
	printer := newTransitionPrinter(out)
	output := &outputPrinter{w: out}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		var msg snapshotMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("unmarshal error", "error", err)
			continue
		}
		if msg.Type != hub.TypeSnapshot {
			continue
		}

		printer.Observe(msg.Data)
		if err := output.Observe(msg.Data); err != nil {
			return err
		}
	}
}
