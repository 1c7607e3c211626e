/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mzaid0/Nestora/config"
	"github.com/mzaid0/Nestora/internal/events"
	"github.com/mzaid0/Nestora/internal/mq"
	"github.com/spf13/cobra"
)

// eventsCmd represents the events command.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect user lifecycle events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print user events from the events channel as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.NewBackend(ctx, cfg.MQ)
		if errors.Is(err, mq.ErrDisabled) {
			return errors.New("MQ_BACKEND is not set")
		}
		if err != nil {
			return err
		}
		defer broker.Close()

		err = broker.Subscribe(ctx, cfg.MQ.EventsChannel, printEvent(cmd.OutOrStdout()))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}

// printEvent writes each event as one JSON line. Undecodable messages are
// reported and acknowledged so they do not loop.
func printEvent(w io.Writer) mq.Handler {
	enc := json.NewEncoder(w)
	return func(_ context.Context, msg mq.Message) error {
		event, err := events.Decode(msg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping message %s: %v\n", msg.ID, err)
			return nil
		}
		return enc.Encode(event)
	}
}
