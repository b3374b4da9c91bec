// ABOUTME: Interactive chat loop streaming agent replies token by token
// ABOUTME: Renders session events and handles slash commands including /pin

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/parlorhq/parlor-go/internal/api"
	"github.com/parlorhq/parlor-go/internal/mutate"
	"github.com/parlorhq/parlor-go/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat <handle>",
	Short: "Open a conversation with an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return runChat(ctx, a, args[0])
	},
}

var (
	agentColor = color.New(color.FgCyan, color.Bold)
	userColor  = color.New(color.FgGreen, color.Bold)
	dimColor   = color.New(color.Faint)
	errColor   = color.New(color.FgRed)
)

// chatRenderer prints session events to the terminal. The typing projection
// redraws a single status line; finalized messages are printed whole.
type chatRenderer struct {
	mu         sync.Mutex
	agentLabel string
	typingLen  int
}

func (r *chatRenderer) clearTyping() {
	if r.typingLen > 0 {
		fmt.Printf("\r%s\r", strings.Repeat(" ", r.typingLen))
		r.typingLen = 0
	}
}

func (r *chatRenderer) OnStateChange(state session.State, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch state {
	case session.StateResolvingAgent, session.StateResolvingConversation:
		dimColor.Printf("[%s]\n", state)
	case session.StateError:
		r.clearTyping()
		errColor.Printf("[error] %s\n", errMsg)
	}
}

func (r *chatRenderer) OnTranscript(msgs []api.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearTyping()
	if len(msgs) == 0 {
		dimColor.Println("(no prior messages)")
		return
	}
	dimColor.Printf("--- %d earlier messages ---\n", len(msgs))
	for _, msg := range msgs {
		r.printMessage(msg)
	}
	dimColor.Println("---")
}

func (r *chatRenderer) OnTyping(partial string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearTyping()
	if partial == "" {
		return
	}
	line := partial
	if idx := strings.LastIndexByte(line, '\n'); idx >= 0 {
		line = line[idx+1:]
	}
	if len(line) > 76 {
		line = "..." + line[len(line)-73:]
	}
	fmt.Print(line)
	r.typingLen = len(line)
}

func (r *chatRenderer) OnMessage(msg api.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearTyping()
	r.printMessage(msg)
}

func (r *chatRenderer) printMessage(msg api.ChatMessage) {
	switch msg.Role {
	case api.RoleAssistant:
		agentColor.Printf("%s: ", r.agentLabel)
	case api.RoleUser:
		userColor.Print("you: ")
	default:
		dimColor.Printf("%s: ", msg.Role)
	}
	fmt.Println(msg.Content)
}

func runChat(ctx context.Context, a *app, handle string) error {
	renderer := &chatRenderer{agentLabel: handle}
	mgr := session.NewManager(a.client, a.directory, a.history, renderer, a.logger)
	mgr.SetTarget(ctx, handle)

	// Local view state for the optimistic pin toggle.
	var pinMu sync.Mutex
	pinned := false
	pins := mutate.NewTracker(a.logger)

	fmt.Printf("Chatting with @%s. /help for commands, /quit to exit.\n", handle)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)
		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else if err := scanner.Err(); err != nil {
				errCh <- err
			} else {
				errCh <- io.EOF
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			mgr.Stop()
			return nil
		case err := <-errCh:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		switch {
		case input == "/quit" || input == "/exit" || input == "/q":
			mgr.Stop()
			return nil

		case input == "/help":
			printChatHelp()

		case input == "/stop":
			mgr.Stop()
			dimColor.Println("[stopped]")

		case input == "/history":
			renderer.OnTranscript(mgr.Transcript())

		case input == "/pin":
			agent := mgr.Agent()
			if agent == nil {
				errColor.Println("[error] agent not resolved yet")
				continue
			}
			togglePin(ctx, a, pins, &pinMu, &pinned, agent.ID)

		case strings.HasPrefix(input, "/"):
			errColor.Printf("unknown command %s, try /help\n", input)

		default:
			if err := mgr.Send(ctx, input); err != nil {
				if errors.Is(err, session.ErrNotReady) {
					errColor.Println("[error] still connecting, try again in a moment")
				} else {
					errColor.Printf("[error] %v\n", err)
				}
			}
		}
	}
}

// togglePin flips the local pinned flag immediately and reconciles with the
// server; on failure the flag is rolled back. Rapid repeat /pin while one
// toggle is outstanding is suppressed rather than queued.
func togglePin(ctx context.Context, a *app, pins *mutate.Tracker, mu *sync.Mutex, pinned *bool, agentID string) {
	mu.Lock()
	next := !*pinned
	m := mutate.Field(
		func() bool { return *pinned },
		func(v bool) {
			mu.Lock()
			*pinned = v
			mu.Unlock()
		},
		next,
	)
	mu.Unlock()

	conv, err := a.client.CreateOrGetConversation(ctx, agentID, api.ChatTypeAgent)
	if err != nil {
		errColor.Printf("[error] %v\n", err)
		return
	}

	err = pins.Do(ctx, conv.ID, m, func(ctx context.Context) error {
		return a.client.SetConversationPinned(ctx, conv.ID, next)
	})
	switch {
	case errors.Is(err, mutate.ErrInFlight):
		dimColor.Println("[pin change still in progress]")
	case err != nil:
		errColor.Printf("[error] pin not saved: %v\n", err)
	case next:
		dimColor.Println("[conversation pinned]")
	default:
		dimColor.Println("[conversation unpinned]")
	}
}

func printChatHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /stop      Cancel the reply currently streaming")
	fmt.Println("  /history   Reprint the conversation transcript")
	fmt.Println("  /pin       Toggle the pinned flag on this conversation")
	fmt.Println("  /help      Show this help")
	fmt.Println("  /quit      Exit")
}
