package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ashureev/socratic-tutor/internal/domain"
	"github.com/ashureev/socratic-tutor/internal/export"
	"github.com/ashureev/socratic-tutor/internal/transcript"
	"github.com/ashureev/socratic-tutor/internal/tutor"
	"github.com/spf13/cobra"
)

const localOwner = "local"

const chatHelp = `Commands:
  /summary        write a learning summary of this conversation
  /export FILE    save the chat history as PDF
  /save FILE      save the transcript as JSON (for "tutor export")
  /quit           leave`

func newChatCmd(a *app) *cobra.Command {
	var topic string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start a tutoring conversation on a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			topic = strings.TrimSpace(topic)
			if topic == "" {
				return errors.New("--topic is required")
			}
			engine, err := a.engine(cmd)
			if err != nil {
				return err
			}
			return runChat(cmd, engine, topic)
		},
	}

	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Topic to learn about")
	return cmd
}

// chatSession drives one terminal conversation through the transcript store.
type chatSession struct {
	engine *tutor.Engine
	store  *transcript.Store
	id     string
	out    io.Writer
}

func runChat(cmd *cobra.Command, engine *tutor.Engine, topic string) error {
	store := transcript.NewStore()
	sess := store.CreateSession(localOwner, topic)
	c := &chatSession{engine: engine, store: store, id: sess.ID, out: cmd.OutOrStdout()}

	fmt.Fprintf(c.out, "Topic: %s  (type /help for commands)\n\n", topic)
	if err := c.turn(cmd, ""); err != nil {
		return err
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := c.command(cmd, line)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := c.turn(cmd, line); err != nil {
			return err
		}
	}
}

// turn opens the topic when answer is empty, otherwise advances the dialogue.
func (c *chatSession) turn(cmd *cobra.Command, answer string) error {
	sess, err := c.store.Get(localOwner, c.id)
	if err != nil {
		return err
	}

	var msgs []domain.Message
	var t tutor.Turn
	if sess.Context == nil {
		t = c.engine.Start(cmd.Context(), sess.Topic)
	} else {
		msgs = append(msgs, c.store.NewMessage(domain.SenderUser, answer))
		t = c.engine.Advance(cmd.Context(), *sess.Context, answer)
	}
	msgs = append(msgs, c.store.NewMessage(domain.SenderAI, t.Text()))

	if _, err := c.store.RecordTurn(localOwner, c.id, &t.Context, msgs...); err != nil {
		return err
	}
	renderTurn(c.out, t)
	return nil
}

func (c *chatSession) command(cmd *cobra.Command, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	sess, err := c.store.Get(localOwner, c.id)
	if err != nil {
		return true, err
	}

	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(c.out, chatHelp)
	case "/summary":
		summary, err := c.engine.Summarize(cmd.Context(), sess.Topic, sess.Messages)
		if err != nil {
			return false, err
		}
		section(c.out, "", summary)
		fmt.Fprintln(c.out)
	case "/export":
		if arg == "" {
			return false, errors.New("usage: /export FILE")
		}
		if err := writeFile(arg, func(w io.Writer) error {
			return export.RenderTranscript(w, sess.Topic, sess.Messages)
		}); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "Saved %s\n", arg)
	case "/save":
		if arg == "" {
			return false, errors.New("usage: /save FILE")
		}
		if err := writeFile(arg, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(sess)
		}); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "Saved %s\n", arg)
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
