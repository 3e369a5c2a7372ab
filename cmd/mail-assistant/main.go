// Mail assistant answers Slack messages with model-drafted emails and
// executes them on Gmail once the user confirms.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hal9000y/mail-assistant/internal/assistant"
	"github.com/hal9000y/mail-assistant/internal/auth"
	"github.com/hal9000y/mail-assistant/internal/config"
	"github.com/hal9000y/mail-assistant/internal/conversation"
	"github.com/hal9000y/mail-assistant/internal/draft"
	"github.com/hal9000y/mail-assistant/internal/gservice"
	"github.com/hal9000y/mail-assistant/internal/llm"
	"github.com/hal9000y/mail-assistant/internal/logging"
	"github.com/hal9000y/mail-assistant/internal/slackbot"
	"github.com/hal9000y/mail-assistant/internal/tool"
)

func main() {
	envFileParam := flag.String("env-file", "", "Path to env file, defaults to .env.<ENV>")
	statusAddrParam := flag.String("status-addr", "", "Status HTTP listen addr, overrides STATUS_ADDR")
	consoleLog := flag.Bool("console-log", false, "Human-readable log output")

	flag.Parse()

	cfg, err := config.Load(*envFileParam)
	if err != nil {
		panic(fmt.Errorf("config.Load failed: %w", err))
	}
	if *statusAddrParam != "" {
		cfg.StatusAddr = *statusAddrParam
	}

	log := logging.New(os.Stdout, cfg.LogLevel, *consoleLog)
	log.Info().Object("config", cfg).Msg("config loaded")

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	creds := auth.NewCache(cfg.ConnectTokenURL,
		auth.WithHTTPClient(httpClient),
		auth.WithLogger(log.With().Str("component", "credentials").Logger()),
	)

	identity := tool.Identity{
		ProjectID:      cfg.ProjectID,
		Environment:    cfg.Environment,
		ExternalUserID: cfg.ExternalUserID,
	}

	orch := assistant.New(assistant.Deps{
		Credentials: creds,
		Model:       newModel(cfg, httpClient),
		Gateway:     newGateway(cfg, identity, httpClient, log),
		Tools:       tool.NewFactory(cfg.MCPServerURL, identity),
		History:     conversation.NewStore(),
		Drafts:      draft.NewStore(),
		Logger:      log.With().Str("component", "assistant").Logger(),
	})

	ln := mustListen(cfg.StatusAddr)

	mux := http.NewServeMux()
	mux.Handle("/token", auth.NewHTTPHandler(creds))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, syscall.SIGINT)

	stopHTTP, errHTTPCh := serveHTTP(srv, ln, log)
	defer stopHTTP()

	bot := slackbot.New(cfg.SlackBotToken, cfg.SlackAppToken, orch, log.With().Str("component", "slack").Logger())
	stopBot, errBotCh := serveBot(bot, log)
	defer stopBot()

	select {
	case err := <-errHTTPCh:
		log.Error().Err(err).Msg("http server failed")
	case err := <-errBotCh:
		log.Error().Err(err).Msg("slack bot failed")
	case <-shutdown:
		log.Info().Msg("shutdown signal received")
	}
}

type completer interface {
	Complete(ctx context.Context, input string, tools []tool.Descriptor) (string, error)
}

func newModel(cfg *config.Config, client *http.Client) completer {
	llmCfg := llm.Config{
		APIKey:     cfg.OpenAIAPIKey,
		Model:      cfg.OpenAIModel,
		BaseURL:    cfg.OpenAIBaseURL,
		HTTPClient: client,
	}

	if cfg.LLMAPI == config.LLMChat {
		return llm.NewChatClient(llmCfg)
	}
	return llm.NewResponsesClient(llmCfg)
}

func newGateway(cfg *config.Config, identity tool.Identity, client *http.Client, log zerolog.Logger) gservice.Gateway {
	gwLog := log.With().Str("component", "gateway").Str("mode", cfg.GatewayMode).Logger()

	var gw gservice.Gateway
	switch cfg.GatewayMode {
	case config.GatewayMCP:
		gw = gservice.NewMCPGateway(cfg.MCPServerURL, identity, client.Transport, gwLog)
	case config.GatewayGmail:
		gw = gservice.NewGmailGateway(cfg.GmailEndpoint, gwLog)
	default:
		gw = gservice.NewActionsGateway(cfg.ActionsBaseURL, identity, client, gwLog)
	}

	return gservice.NewBreakerGateway(gw, gservice.BreakerSettings{Name: cfg.GatewayMode}, gwLog)
}

func serveBot(bot *slackbot.Bot, log zerolog.Logger) (func(), <-chan error) {
	errBotCh := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(errBotCh)
		log.Info().Msg("starting slack socket mode")

		if err := bot.Run(ctx); err != nil {
			errBotCh <- fmt.Errorf("bot.Run failed: %w", err)
		}
	}()

	return func() {
		cancel()

		<-errBotCh
		log.Info().Msg("slack bot stopped")
	}, errBotCh
}

func serveHTTP(srv *http.Server, ln net.Listener, log zerolog.Logger) (func(), <-chan error) {
	errHTTPCh := make(chan error, 1)
	go func() {
		defer close(errHTTPCh)

		log.Info().Str("addr", ln.Addr().String()).Msg("starting status server")

		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errHTTPCh <- fmt.Errorf("srv.Serve failed: %w", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("srv.Shutdown failed")
		}

		<-errHTTPCh
		log.Info().Msg("status server stopped")
	}, errHTTPCh
}

func mustListen(addr string) net.Listener {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		panic(fmt.Errorf("net.Listen failed: %w", err))
	}

	return ln
}
