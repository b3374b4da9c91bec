// ABOUTME: compose subcommand driving the generate/preview/approve workflow
// ABOUTME: Interactive decision loop: approve, regenerate with feedback, or cancel

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parlorhq/parlor-go/internal/api"
	"github.com/parlorhq/parlor-go/internal/preview"
)

var (
	composeEntity string
	composeTopic  string
	composePrompt string
	composeMedia  string
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Generate an AI-authored draft and review it before posting",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return runCompose(ctx, a)
	},
}

func init() {
	composeCmd.Flags().StringVar(&composeEntity, "entity", "", "id of the entity the draft belongs to")
	composeCmd.Flags().StringVar(&composeTopic, "topic", "", "topic hint for generation")
	composeCmd.Flags().StringVar(&composePrompt, "prompt", "", "free-form generation prompt")
	composeCmd.Flags().StringVar(&composeMedia, "media", "", "media kind to generate (image or video)")
	composeCmd.MarkFlagRequired("entity")
}

func runCompose(ctx context.Context, a *app) error {
	w := preview.NewWorkflow(a.client, a.confirmed, a.logger)
	w.OnApproved = func(p api.GenerationPreview) {
		agentColor.Printf("Posted: %s\n", p.Title)
	}

	params := api.GenerateParams{
		EntityID:  composeEntity,
		Topic:     composeTopic,
		Prompt:    composePrompt,
		MediaKind: composeMedia,
	}

	dimColor.Println("[generating draft, this can take a while]")
	p, err := w.Generate(ctx, params)
	if err != nil {
		return err
	}
	printPreview(p)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("(a)pprove, (r)egenerate <feedback>, (c)ancel: ")
		if !scanner.Scan() {
			w.Cancel(ctx)
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())

		switch {
		case input == "a" || input == "approve":
			if err := w.Approve(ctx, nil); err != nil {
				if errors.Is(err, preview.ErrNoPreview) {
					return err
				}
				errColor.Printf("[error] approve failed: %v\n", err)
				dimColor.Println("[the draft is still available, you can retry]")
				continue
			}
			return nil

		case input == "r" || strings.HasPrefix(input, "r "):
			feedback := strings.TrimSpace(strings.TrimPrefix(input, "r"))
			dimColor.Println("[regenerating]")
			p, err := w.Regenerate(ctx, feedback)
			if err != nil {
				if errors.Is(err, preview.ErrSuperseded) {
					continue
				}
				errColor.Printf("[error] regenerate failed: %v\n", err)
				continue
			}
			printPreview(p)

		case input == "c" || input == "cancel" || input == "q":
			w.Cancel(ctx)
			dimColor.Println("[draft discarded]")
			return nil

		default:
			fmt.Println("unrecognized choice")
		}
	}
}

func printPreview(p *api.GenerationPreview) {
	fmt.Println()
	agentColor.Printf("%s\n", p.Title)
	fmt.Println(p.Description)
	if p.ImageURL != "" {
		dimColor.Printf("[image] %s\n", p.ImageURL)
	}
	if p.VideoURL != "" {
		dimColor.Printf("[video] %s\n", p.VideoURL)
	}
	if p.Topic != "" {
		dimColor.Printf("[topic] %s\n", p.Topic)
	}
	fmt.Println()
}
