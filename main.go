// Command relaychat is a terminal chat client and the relay it talks to.
//
// It has three commands:
//  1. "client" – joins a relay as a user and runs the terminal chat view
//  2. "relay" – runs the relay server (WebSocket hub, roster API, optional ngrok tunnel)
//  3. "mcp" – joins a relay as a user and exposes the session to agents over MCP stdio
//
// Settings come from flags, the environment, or a .env file in the working
// directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/relaychat/chat/config"
	"github.com/wricardo/mcp-training/relaychat/chat/session"
	"github.com/wricardo/mcp-training/relaychat/relay"
	chatmcp "github.com/wricardo/mcp-training/relaychat/transport/mcp"
	"github.com/wricardo/mcp-training/relaychat/transport/websocket"
	"github.com/wricardo/mcp-training/relaychat/tui"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Relay Chat"
)

func main() {
	// A missing .env file is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Printed rather than logged: the client may have sent logs to io.Discard.
	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "relaychat: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the command tree.
func newApp() *cli.Command {
	serverFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "relay WebSocket URL",
			Value:   config.DefaultServerURL,
			Sources: cli.EnvVars("CHAT_SERVER_URL"),
		},
		&cli.StringFlag{
			Name:    "username",
			Aliases: []string{"u"},
			Usage:   "name to register with the relay",
			Sources: cli.EnvVars("CHAT_USERNAME", "USER"),
		},
	}

	return &cli.Command{
		Name:    "relaychat",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				Sources: cli.EnvVars("CHAT_DEBUG"),
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "write logs to this file (the client discards them otherwise)",
				Sources: cli.EnvVars("CHAT_LOG_FILE"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			configureLogger(os.Stderr, cmd.Bool("debug"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:   "client",
				Usage:  "join a relay and chat in the terminal",
				Flags:  serverFlags,
				Action: runClient,
			},
			{
				Name:  "relay",
				Usage: "run the relay server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "listen address",
						Value:   config.DefaultRelayAddr,
						Sources: cli.EnvVars("RELAY_ADDR"),
					},
					&cli.BoolFlag{
						Name:    "ngrok",
						Usage:   "expose the relay through an ngrok tunnel",
						Sources: cli.EnvVars("NGROK_ENABLED"),
					},
					&cli.StringFlag{
						Name:    "ngrok-auth",
						Usage:   "ngrok auth token",
						Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
					},
					&cli.StringFlag{
						Name:    "ngrok-domain",
						Usage:   "custom ngrok domain",
						Sources: cli.EnvVars("NGROK_DOMAIN"),
					},
				},
				Action: runRelay,
			},
			{
				Name:   "mcp",
				Usage:  "join a relay and serve the session to agents over MCP stdio",
				Flags:  serverFlags,
				Action: runMCP,
			},
		},
	}
}

// configureLogger points the global logger at w.
func configureLogger(w io.Writer, debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()
}

func clientConfig(cmd *cli.Command) (config.Client, error) {
	cfg := config.Client{
		ServerURL: cmd.String("server"),
		Username:  cmd.String("username"),
	}
	return cfg, cfg.Validate()
}

// joinSession dials the relay and registers as cfg.Username.
func joinSession(ctx context.Context, cfg config.Client) (*websocket.Channel, *session.Store, error) {
	ch, err := websocket.Dial(ctx, cfg.ServerURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to relay: %w", err)
	}
	store := session.CreateSession(ch, cfg.Username)
	log.Info().Str("server", cfg.ServerURL).Str("user", cfg.Username).Msg("[chat] joined relay")
	return ch, store, nil
}

// runClient runs the terminal chat view until the user quits or the relay
// goes away.
func runClient(ctx context.Context, cmd *cli.Command) error {
	cfg, err := clientConfig(cmd)
	if err != nil {
		return err
	}

	// The view owns the terminal, so logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if path := cmd.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	configureLogger(logOut, cmd.Bool("debug"))

	ch, store, err := joinSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer ch.Close()

	program := tea.NewProgram(tui.New(store), tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		err := store.Run(ctx, ch.Frames())
		program.Send(tui.Ended(err))
	}()

	final, err := program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal view: %w", err)
	}

	if model, ok := final.(tui.Model); ok && errors.Is(model.Err(), session.ErrSessionClosed) {
		return fmt.Errorf("disconnected from %s: %w", cfg.ServerURL, model.Err())
	}
	return nil
}

// runMCP serves the session over MCP stdio until stdin closes.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := clientConfig(cmd)
	if err != nil {
		return err
	}

	ch, store, err := joinSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer ch.Close()

	go func() {
		if err := store.Run(ctx, ch.Frames()); errors.Is(err, session.ErrSessionClosed) {
			log.Warn().Msg("[chat] relay connection closed; tools now report stale state")
		}
	}()

	mcpServer := chatmcp.NewServer(store, Version)
	log.Info().Msg("[chat] MCP stdio server ready")
	if err := server.ServeStdio(mcpServer.GetMCPServer()); err != nil {
		return fmt.Errorf("mcp stdio server: %w", err)
	}
	return nil
}

// runRelay serves the relay locally and, when enabled, through ngrok until
// ctx ends.
func runRelay(ctx context.Context, cmd *cli.Command) error {
	cfg := config.Relay{
		Addr: cmd.String("addr"),
		Ngrok: config.Ngrok{
			Enabled:   cmd.Bool("ngrok"),
			AuthToken: cmd.String("ngrok-auth"),
			Domain:    cmd.String("ngrok-domain"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	handler := relay.NewServer(hub)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msgf("[relay] listening on %s", cfg.Addr)
		log.Info().Msgf("[relay] WebSocket: ws://%s/ws", cfg.Addr)
		log.Info().Msgf("[relay] Users API: http://%s/api/users", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if cfg.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveNgrok(ctx, cfg.Ngrok, handler)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("[relay] shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("[relay] http server shutdown error")
	}

	wg.Wait()
	log.Info().Msg("[relay] stopped")
	return runErr
}

// serveNgrok serves handler through an ngrok tunnel until ctx ends.
func serveNgrok(ctx context.Context, cfg config.Ngrok, handler http.Handler) {
	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		log.Error().Err(err).Msg("[relay] failed to start ngrok tunnel")
		return
	}

	ngrokServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		ngrokServer.Close()
	}()

	log.Info().Msgf("[relay] ngrok tunnel established: %s", tun.URL())
	log.Info().Msgf("[relay] WebSocket (ngrok): %s/ws", tun.URL())

	if err := ngrokServer.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("[relay] ngrok server error")
	}
	log.Info().Msg("[relay] ngrok tunnel closed")
}
