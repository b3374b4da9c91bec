// ABOUTME: history subcommand printing a conversation transcript
// ABOUTME: Shows the cached transcript first, then the authoritative fetch

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parlorhq/parlor-go/internal/api"
)

var historyCmd = &cobra.Command{
	Use:   "history <handle>",
	Short: "Print the conversation transcript for an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return runHistory(ctx, a, args[0])
	},
}

func runHistory(ctx context.Context, a *app, handle string) error {
	agent, err := a.client.GetAgent(ctx, handle)
	if err != nil {
		return err
	}
	conv, err := a.client.CreateOrGetConversation(ctx, agent.ID, api.ChatTypeAgent)
	if err != nil {
		return err
	}

	renderer := &chatRenderer{agentLabel: handle}

	msgs, err := a.client.GetMessages(ctx, conv.ID)
	if err != nil {
		// Fall back to the cached transcript when the server is unreachable.
		cached, ok := a.history.Load(ctx, conv.ID)
		if !ok {
			return err
		}
		dimColor.Printf("[offline, showing cached transcript] %v\n", err)
		renderer.OnTranscript(cached)
		return nil
	}

	if err := a.history.Save(ctx, conv.ID, msgs); err != nil {
		a.logger.Warn("history cache write failed", "error", err)
	}
	renderer.OnTranscript(msgs)
	return nil
}
