// Command chatbots drives a relay with scripted users. Every bot joins, waits
// until it sees the whole crew in the roster, sends its messages, and then
// waits until it has received every message the crew sent.
//
// It exits non-zero when any bot misses a message before the timeout.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/relaychat/chat/config"
	"github.com/wricardo/mcp-training/relaychat/chat/session"
	"github.com/wricardo/mcp-training/relaychat/transport/websocket"
)

var ErrIncomplete = errors.New("not every message was delivered")

// Options controls a run.
type Options struct {
	ServerURL string
	Prefix    string
	Bots      int
	Messages  int
	Delay     time.Duration
	Timeout   time.Duration
}

// Report summarizes a run.
type Report struct {
	Bots     int
	Sent     int
	Expected int
	Received int
	// Missing counts undelivered messages per bot.
	Missing map[string]int
	Elapsed time.Duration
}

type bot struct {
	name  string
	ch    *websocket.Channel
	store *session.Store
}

func main() {
	cmd := &cli.Command{
		Name:  "chatbots",
		Usage: "drive a relay with scripted users",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: config.DefaultServerURL, Usage: "relay WebSocket URL", Sources: cli.EnvVars("CHAT_SERVER_URL")},
			&cli.StringFlag{Name: "prefix", Value: "bot", Usage: "bot name prefix"},
			&cli.IntFlag{Name: "bots", Value: 3, Usage: "number of bots"},
			&cli.IntFlag{Name: "messages", Value: 10, Usage: "messages per bot"},
			&cli.DurationFlag{Name: "delay", Value: 50 * time.Millisecond, Usage: "pause between send rounds"},
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "give up after this long"},
			&cli.BoolFlag{Name: "v", Usage: "verbose output"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			level := zerolog.InfoLevel
			if cmd.Bool("v") {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

			report, err := run(ctx, Options{
				ServerURL: cmd.String("server"),
				Prefix:    cmd.String("prefix"),
				Bots:      int(cmd.Int("bots")),
				Messages:  int(cmd.Int("messages")),
				Delay:     cmd.Duration("delay"),
				Timeout:   cmd.Duration("timeout"),
			})
			log.Info().
				Int("bots", report.Bots).
				Int("sent", report.Sent).
				Int("expected", report.Expected).
				Int("received", report.Received).
				Dur("elapsed", report.Elapsed).
				Msg("run finished")
			for name, missing := range report.Missing {
				log.Warn().Str("bot", name).Int("missing", missing).Msg("undelivered messages")
			}
			return err
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("chatbots failed")
	}
}

func run(ctx context.Context, opts Options) (Report, error) {
	if opts.Bots < 1 || opts.Messages < 0 {
		return Report{}, fmt.Errorf("%w: need at least one bot", config.ErrInvalidConfig)
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	names := make([]string, opts.Bots)
	bots := make([]*bot, 0, opts.Bots)
	defer func() {
		for _, b := range bots {
			b.ch.Close()
		}
	}()

	for i := range names {
		names[i] = fmt.Sprintf("%s-%d", opts.Prefix, i+1)
		cfg := config.Client{ServerURL: opts.ServerURL, Username: names[i]}
		if err := cfg.Validate(); err != nil {
			return Report{}, err
		}
		ch, err := websocket.Dial(ctx, cfg.ServerURL)
		if err != nil {
			return Report{}, fmt.Errorf("bot %s: %w", names[i], err)
		}
		store := session.CreateSession(ch, names[i])
		go store.Run(ctx, ch.Frames())
		bots = append(bots, &bot{name: names[i], ch: ch, store: store})
	}

	start := time.Now()
	report := Report{Bots: opts.Bots, Missing: map[string]int{}}

	if err := waitFor(ctx, func() bool {
		for _, b := range bots {
			if !hasUsers(b.store.Snapshot(), names) {
				return false
			}
		}
		return true
	}); err != nil {
		report.Elapsed = time.Since(start)
		return report, fmt.Errorf("waiting for roster: %w", err)
	}
	log.Debug().Strs("bots", names).Msg("crew assembled")

	for round := 1; round <= opts.Messages; round++ {
		for _, b := range bots {
			if b.store.SubmitMessage(fmt.Sprintf("%s says hello #%d", b.name, round)) {
				report.Sent++
			}
		}
		if opts.Delay > 0 {
			select {
			case <-time.After(opts.Delay):
			case <-ctx.Done():
			}
		}
	}
	report.Expected = report.Sent * opts.Bots

	waitErr := waitFor(ctx, func() bool {
		for _, b := range bots {
			if len(b.store.Snapshot().Messages) < report.Sent {
				return false
			}
		}
		return true
	})

	for _, b := range bots {
		got := len(b.store.Snapshot().Messages)
		report.Received += got
		if got < report.Sent {
			report.Missing[b.name] = report.Sent - got
		}
	}
	report.Elapsed = time.Since(start)

	if waitErr != nil {
		return report, fmt.Errorf("%w: %v", ErrIncomplete, waitErr)
	}
	return report, nil
}

func hasUsers(state session.State, names []string) bool {
	for _, name := range names {
		if !slices.ContainsFunc(state.Users, func(u session.UserProfile) bool { return u.Name == name }) {
			return false
		}
	}
	return true
}

// waitFor polls cond until it holds or ctx ends.
func waitFor(ctx context.Context, cond func() bool) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
