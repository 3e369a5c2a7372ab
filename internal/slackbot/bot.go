// Package slackbot connects the assistant to Slack over Socket Mode.
package slackbot

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/hal9000y/mail-assistant/internal/assistant"
)

type handler interface {
	Handle(ctx context.Context, msg assistant.Message, r assistant.Replier) assistant.Turn
}

type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Bot receives Slack message events and answers through the handler.
type Bot struct {
	events <-chan socketmode.Event
	run    func(context.Context) error
	api    poster
	h      handler
	ack    func(socketmode.Request)
	log    zerolog.Logger

	wg sync.WaitGroup
}

// New creates a Bot authenticated with a bot token and an app-level token.
func New(botToken, appToken string, h handler, log zerolog.Logger, opts ...slack.Option) *Bot {
	api := slack.New(botToken, append(opts, slack.OptionAppLevelToken(appToken))...)
	client := socketmode.New(api)

	return &Bot{
		events: client.Events,
		run:    client.RunContext,
		api:    api,
		h:      h,
		ack:    func(req socketmode.Request) { client.Ack(req) },
		log:    log,
	}
}

// Run serves events until ctx is done, then waits for in-flight turns.
// Turns keep ctx; the event loop is stopped before waiting so no turn starts
// after the wait begins.
func (b *Bot) Run(ctx context.Context) error {
	loopCtx, stop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		b.loop(loopCtx, ctx)
	}()

	err := b.run(ctx)
	stop()
	<-loopDone
	b.wg.Wait()

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("client.RunContext failed: %w", err)
	}
	return nil
}

func (b *Bot) loop(loopCtx, turnCtx context.Context) {
	for {
		select {
		case <-loopCtx.Done():
			return
		case evt, ok := <-b.events:
			if !ok {
				return
			}
			b.dispatch(turnCtx, evt)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		b.log.Info().Msg("slack connecting")
	case socketmode.EventTypeConnected:
		b.log.Info().Msg("slack connected")
	case socketmode.EventTypeConnectionError:
		b.log.Warn().Interface("data", evt.Data).Msg("slack connection error")
	case socketmode.EventTypeDisconnect:
		b.log.Warn().Msg("slack disconnected")
	case socketmode.EventTypeInvalidAuth:
		b.log.Error().Msg("slack rejected the app token")
	case socketmode.EventTypeEventsAPI:
		if evt.Request != nil {
			b.ack(*evt.Request)
		}

		ev, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok || ev.Type != slackevents.CallbackEvent {
			return
		}
		in, ok := ev.InnerEvent.Data.(*slackevents.MessageEvent)
		if !ok || in == nil {
			return
		}

		msg := MessageFromEvent(in)
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.h.Handle(ctx, msg, NewReplier(b.api, msg.Channel, msg.ThreadTS))
		}()
	}
}

// MessageFromEvent converts a Slack message event. Messages carrying a bot id
// are marked as bot messages so the assistant never answers itself.
func MessageFromEvent(ev *slackevents.MessageEvent) assistant.Message {
	subtype := ev.SubType
	if ev.BotID != "" {
		subtype = assistant.SubtypeBotMessage
	}

	return assistant.Message{
		User:     ev.User,
		Text:     ev.Text,
		Subtype:  subtype,
		Channel:  ev.Channel,
		ThreadTS: ev.ThreadTimeStamp,
	}
}

// Replier posts replies to one channel, inside a thread when threadTS is set.
type Replier struct {
	api      poster
	channel  string
	threadTS string
}

// NewReplier creates a Replier for channel.
func NewReplier(api poster, channel, threadTS string) *Replier {
	return &Replier{api: api, channel: channel, threadTS: threadTS}
}

func (r *Replier) Reply(ctx context.Context, text string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if r.threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(r.threadTS))
	}

	if _, _, err := r.api.PostMessageContext(ctx, r.channel, opts...); err != nil {
		return fmt.Errorf("api.PostMessageContext failed: %w", err)
	}
	return nil
}
