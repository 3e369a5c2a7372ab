package slackbot

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hal9000y/mail-assistant/internal/assistant"
)

type posterMock struct {
	PostFunc func(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

func (m *posterMock) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	return m.PostFunc(ctx, channelID, options...)
}

type handlerMock struct {
	mu   sync.Mutex
	msgs []assistant.Message
	done chan struct{}
}

func (m *handlerMock) Handle(ctx context.Context, msg assistant.Message, r assistant.Replier) assistant.Turn {
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()

	_ = r.Reply(ctx, "ok")
	close(m.done)
	return assistant.Turn{}
}

func TestMessageFromEvent(t *testing.T) {
	got := MessageFromEvent(&slackevents.MessageEvent{
		User:            "U1",
		Text:            "送信して",
		Channel:         "D1",
		ThreadTimeStamp: "1700000000.000100",
	})
	assert.Equal(t, assistant.Message{User: "U1", Text: "送信して", Channel: "D1", ThreadTS: "1700000000.000100"}, got)

	bot := MessageFromEvent(&slackevents.MessageEvent{User: "UBOT", BotID: "B1", Text: "📝 hi", Channel: "D1"})
	assert.Equal(t, assistant.SubtypeBotMessage, bot.Subtype)

	edited := MessageFromEvent(&slackevents.MessageEvent{User: "U1", SubType: "message_changed"})
	assert.Equal(t, "message_changed", edited.Subtype)
}

// postedValues renders options the way the Slack client would send them.
func postedValues(t *testing.T, channel string, options []slack.MsgOption) url.Values {
	t.Helper()

	_, values, err := slack.UnsafeApplyMsgOptions("xoxb-test", channel, "https://slack.com/api/", options...)
	require.NoError(t, err)
	return values
}

func TestReplier(t *testing.T) {
	var got url.Values
	api := &posterMock{PostFunc: func(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
		got = postedValues(t, channelID, options)
		return channelID, "1.2", nil
	}}

	require.NoError(t, NewReplier(api, "D1", "").Reply(context.Background(), "こんにちは"))
	assert.Equal(t, "D1", got.Get("channel"))
	assert.Equal(t, "こんにちは", got.Get("text"))
	assert.Empty(t, got.Get("thread_ts"))

	require.NoError(t, NewReplier(api, "C1", "1700000000.000100").Reply(context.Background(), "in thread"))
	assert.Equal(t, "1700000000.000100", got.Get("thread_ts"))
}

func TestReplierError(t *testing.T) {
	api := &posterMock{PostFunc: func(context.Context, string, ...slack.MsgOption) (string, string, error) {
		return "", "", errors.New("channel_not_found")
	}}

	err := NewReplier(api, "D1", "").Reply(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestDispatchMessageEvent(t *testing.T) {
	var (
		acked  []string
		posted []string
		mu     sync.Mutex
	)
	h := &handlerMock{done: make(chan struct{})}
	b := &Bot{
		api: &posterMock{PostFunc: func(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
			mu.Lock()
			posted = append(posted, channelID)
			mu.Unlock()
			return channelID, "1.2", nil
		}},
		h:   h,
		ack: func(req socketmode.Request) { acked = append(acked, req.EnvelopeID) },
		log: zerolog.Nop(),
	}

	b.dispatch(context.Background(), socketmode.Event{
		Type:    socketmode.EventTypeEventsAPI,
		Request: &socketmode.Request{EnvelopeID: "env-1"},
		Data: slackevents.EventsAPIEvent{
			Type: slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{
				Type: "message",
				Data: &slackevents.MessageEvent{User: "U1", Text: "送信して", Channel: "D1"},
			},
		},
	})

	<-h.done
	b.wg.Wait()

	assert.Equal(t, []string{"env-1"}, acked)
	require.Len(t, h.msgs, 1)
	assert.Equal(t, "送信して", h.msgs[0].Text)
	assert.Equal(t, []string{"D1"}, posted)
}

func TestDispatchIgnoresOtherEvents(t *testing.T) {
	var acked int
	b := &Bot{
		h:   &handlerMock{done: make(chan struct{})},
		ack: func(socketmode.Request) { acked++ },
		log: zerolog.Nop(),
	}

	b.dispatch(context.Background(), socketmode.Event{Type: socketmode.EventTypeConnected})
	b.dispatch(context.Background(), socketmode.Event{
		Type:    socketmode.EventTypeEventsAPI,
		Request: &socketmode.Request{EnvelopeID: "env-2"},
		Data: slackevents.EventsAPIEvent{
			Type:       slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{Type: "app_mention", Data: &slackevents.AppMentionEvent{}},
		},
	})
	b.wg.Wait()

	assert.Equal(t, 1, acked, "events are acked even when ignored")
}

func TestRunWaitsForDispatchedTurns(t *testing.T) {
	events := make(chan socketmode.Event)
	h := &handlerMock{done: make(chan struct{})}
	b := &Bot{
		events: events,
		api: &posterMock{PostFunc: func(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
			return channelID, "1.2", nil
		}},
		h:   h,
		ack: func(socketmode.Request) {},
		log: zerolog.Nop(),
	}
	b.run = func(context.Context) error {
		events <- socketmode.Event{
			Type:    socketmode.EventTypeEventsAPI,
			Request: &socketmode.Request{EnvelopeID: "env-3"},
			Data: slackevents.EventsAPIEvent{
				Type: slackevents.CallbackEvent,
				InnerEvent: slackevents.EventsAPIInnerEvent{
					Type: "message",
					Data: &slackevents.MessageEvent{User: "U1", Text: "保存して", Channel: "D1"},
				},
			},
		}
		return errors.New("socket closed")
	}

	err := b.Run(context.Background())
	require.ErrorContains(t, err, "socket closed")

	select {
	case <-h.done:
	default:
		t.Fatal("Run returned before the dispatched turn finished")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.msgs, 1)
	assert.Equal(t, "保存して", h.msgs[0].Text)
}
