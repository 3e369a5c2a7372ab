package gservice_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/hal9000y/mail-assistant/internal/apperr"
	"github.com/hal9000y/mail-assistant/internal/gservice"
)

type mailInput struct {
	To       string `json:"to,omitempty" jsonschema:"recipient"`
	Subject  string `json:"subject,omitempty" jsonschema:"subject"`
	Body     string `json:"body" jsonschema:"message body"`
	ThreadID string `json:"threadId,omitempty" jsonschema:"thread to reply in"`
}

type mailOutput struct {
	ID string `json:"id" jsonschema:"created resource ID"`
}

type fakeGmailMCP struct {
	mu    sync.Mutex
	calls map[string][]mailInput
	fail  error
}

func (f *fakeGmailMCP) handler(name string) func(context.Context, *mcp.CallToolRequest, mailInput) (*mcp.CallToolResult, mailOutput, error) {
	return func(_ context.Context, _ *mcp.CallToolRequest, in mailInput) (*mcp.CallToolResult, mailOutput, error) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.fail != nil {
			return nil, mailOutput{}, f.fail
		}
		f.calls[name] = append(f.calls[name], in)
		return nil, mailOutput{ID: "r-1"}, nil
	}
}

func (f *fakeGmailMCP) server() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "fake-gmail", Version: "v0.0.1"}, nil)
	for _, name := range []string{"gmail-create-draft", "gmail-send-email"} {
		mcp.AddTool(server, &mcp.Tool{Name: name, Description: name}, f.handler(name))
	}
	return server
}

func newInMemoryGateway(t *testing.T, fake *fakeGmailMCP, seen *[]string) *gservice.MCPGateway {
	server := fake.server()

	return gservice.NewMCPGatewayWithTransport(func(tok *oauth2.Token) mcp.Transport {
		*seen = append(*seen, tok.AccessToken)

		clientTransport, serverTransport := mcp.NewInMemoryTransports()
		serverSession, err := server.Connect(context.Background(), serverTransport, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = serverSession.Close() })

		return clientTransport
	}, zerolog.Nop())
}

func TestMCPGateway(t *testing.T) {
	fake := &fakeGmailMCP{calls: make(map[string][]mailInput)}
	var seen []string
	gw := newInMemoryGateway(t, fake, &seen)
	ctx := context.Background()

	require.NoError(t, gw.Execute(ctx, gservice.ActionSendEmail, testTok, testDft))
	require.NoError(t, gw.Execute(ctx, gservice.ActionCreateDraft, testTok, testDft))

	expected := mailInput{To: "bob@example.com", Subject: "件名", Body: "本文", ThreadID: "th-1"}
	assert.Equal(t, []mailInput{expected}, fake.calls["gmail-send-email"])
	assert.Equal(t, []mailInput{expected}, fake.calls["gmail-create-draft"])
	assert.Equal(t, []string{"tok-1", "tok-1"}, seen)
}

func TestMCPGatewayErrors(t *testing.T) {
	cases := []struct {
		name        string
		fail        error
		authExpired bool
	}{
		{name: "unauthorized upstream", fail: fmt.Errorf("gmail returned 401 Unauthorized"), authExpired: true},
		{name: "bare 401 with token wording", fail: fmt.Errorf("status 401: invalid token"), authExpired: true},
		{name: "other failure", fail: fmt.Errorf("quota exceeded")},
		{name: "401 inside message id", fail: fmt.Errorf("message 18f4401ab not found")},
		{name: "401 without auth wording", fail: fmt.Errorf("thread has 401 replies, limit reached")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeGmailMCP{calls: make(map[string][]mailInput), fail: tc.fail}
			var seen []string
			gw := newInMemoryGateway(t, fake, &seen)

			err := gw.Execute(context.Background(), gservice.ActionSendEmail, testTok, testDft)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.fail.Error())
			assert.Equal(t, tc.authExpired, apperr.IsAuthExpired(err))
		})
	}
}

func TestMCPGatewayUnsupportedAction(t *testing.T) {
	fake := &fakeGmailMCP{calls: make(map[string][]mailInput)}
	var seen []string
	gw := newInMemoryGateway(t, fake, &seen)

	require.Error(t, gw.Execute(context.Background(), "archive", testTok, testDft))
	assert.Empty(t, seen, "no connection is opened for unknown actions")
}
