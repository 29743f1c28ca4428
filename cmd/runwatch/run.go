package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
)

var (
	runTickers       []string
	runAgents        []string
	runModel         string
	runProvider      string
	runCash          float64
	runMargin        float64
	runTimeout       time.Duration
	runShowReasoning bool
	runStartDate     string
	runEndDate       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start one run and follow it in the terminal",
	Example: `  runwatch run --tickers AAPL,MSFT --agents warren_buffett,cathie_wood
  runwatch run --tickers NVDA --agents michael_burry --model gpt-4o --provider OpenAI --timeout 5m`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSliceVar(&runTickers, "tickers", nil, "Comma-separated tickers")
	runCmd.Flags().StringSliceVar(&runAgents, "agents", nil, "Comma-separated analyst agent ids")
	runCmd.Flags().StringVar(&runModel, "model", cfg.DefaultModelName, "Model name for every agent")
	runCmd.Flags().StringVar(&runProvider, "provider", cfg.DefaultModelProvider, "Model provider")
	runCmd.Flags().Float64Var(&runCash, "cash", cfg.InitialCash, "Initial cash")
	runCmd.Flags().Float64Var(&runMargin, "margin", cfg.MarginRequirement, "Margin requirement")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Cancel the run after this long (0 waits forever)")
	runCmd.Flags().BoolVar(&runShowReasoning, "show-reasoning", cfg.ShowReasoning, "Ask agents to include their reasoning")
	runCmd.Flags().StringVar(&runStartDate, "start-date", "", "Analysis window start (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runEndDate, "end-date", "", "Analysis window end (YYYY-MM-DD)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	printer := newTransitionPrinter(out)
	unsubscribe := a.service.Subscribe(printer.Observe)
	defer unsubscribe()

	req := domain.RunRequest{
		Tickers:           trimAll(runTickers),
		SelectedAgents:    trimAll(runAgents),
		ModelName:         runModel,
		ModelProvider:     runProvider,
		InitialCash:       &runCash,
		MarginRequirement: &runMargin,
		ShowReasoning:     &runShowReasoning,
		StartDate:         runStartDate,
		EndDate:           runEndDate,
	}

	run, err := a.service.StartRun(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "run %s started (tickers: %s)\n", run.RunID, strings.Join(run.Tickers, ", "))

	if runTimeout > 0 {
		timer := time.AfterFunc(runTimeout, func() {
			slog.Warn("run timed out, cancelling", "run_id", run.RunID, "timeout", runTimeout)
			a.service.CancelRun(context.Background())
		})
		defer timer.Stop()
	}

	final, err := a.service.Wait(ctx)
	if errors.Is(err, context.Canceled) {
		// Interrupted: stop the stream before exiting.
		final, err = a.service.CancelRun(context.Background())
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "run %s finished: %s\n", final.RunID, final.Status)
	if output, ok := a.service.Output(); ok {
		return printOutput(out, output)
	}
	if final.Status != domain.RunStatusDone {
		return fmt.Errorf("run %s ended with status %s", final.RunID, final.Status)
	}
	return nil
}

func printOutput(w io.Writer, output *domain.OutputPayload) error {
	formatted, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", formatted)
	return err
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
