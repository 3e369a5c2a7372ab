// Package assistant runs one conversation turn per inbound chat message:
// it asks the model for a proposal, keeps it as a pending draft, and executes
// the draft only when the user confirms it.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/hal9000y/mail-assistant/internal/apperr"
	"github.com/hal9000y/mail-assistant/internal/auth"
	"github.com/hal9000y/mail-assistant/internal/conversation"
	"github.com/hal9000y/mail-assistant/internal/draft"
	"github.com/hal9000y/mail-assistant/internal/gservice"
	"github.com/hal9000y/mail-assistant/internal/tool"
)

// SubtypeBotMessage marks messages posted by bots, including this one.
const SubtypeBotMessage = "bot_message"

// Message is an inbound chat message.
type Message struct {
	User     string
	Text     string
	Subtype  string
	Channel  string
	ThreadTS string
}

// Replier sends text back to where a message came from.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, text string) error

func (f ReplierFunc) Reply(ctx context.Context, text string) error {
	return f(ctx, text)
}

type completions interface {
	Complete(ctx context.Context, input string, tools []tool.Descriptor) (string, error)
}

type gateway interface {
	Execute(ctx context.Context, action gservice.Action, tok *oauth2.Token, d draft.Draft) error
}

type descriptors interface {
	BuildAll(token string) ([]tool.Descriptor, error)
}

// State is where a user's conversation stands after a turn.
type State int

const (
	StateIdle State = iota
	StateAwaitingModel
	StateAwaitingConfirmation
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateFinalized:
		return "finalized"
	default:
		return "idle"
	}
}

// Turn summarizes what one Handle call did.
type Turn struct {
	State   State
	Intent  draft.Intent
	DraftID string
	Action  gservice.Action
	Replies int
	Err     error
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Credentials credentials
	Model       completions
	Gateway     gateway
	Tools       descriptors
	History     *conversation.Store
	Drafts      *draft.Store
	Now         func() time.Time
	Logger      zerolog.Logger
}

// Orchestrator handles inbound messages.
type Orchestrator struct {
	creds     credentials
	model     completions
	gw        gateway
	tools     descriptors
	history   *conversation.Store
	drafts    *draft.Store
	extractor *draft.Extractor
	now       func() time.Time
	log       zerolog.Logger
}

// New creates an Orchestrator.
func New(d Deps) *Orchestrator {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.History == nil {
		d.History = conversation.NewStore()
	}
	if d.Drafts == nil {
		d.Drafts = draft.NewStore()
	}

	return &Orchestrator{
		creds:     d.Credentials,
		model:     d.Model,
		gw:        d.Gateway,
		tools:     d.Tools,
		history:   d.History,
		drafts:    d.Drafts,
		extractor: draft.NewExtractor(d.Drafts.NewID, d.Now),
		now:       d.Now,
		log:       d.Logger,
	}
}

// Handle processes one message. Failures are reported to the user through r
// and recorded in the returned Turn; Handle itself never fails or panics.
func (o *Orchestrator) Handle(ctx context.Context, msg Message, r Replier) (turn Turn) {
	if msg.User == "" || msg.Subtype == SubtypeBotMessage {
		return Turn{State: StateIdle}
	}

	log := o.log.With().Str("user", msg.User).Str("channel", msg.Channel).Logger()
	cr := &countingReplier{next: r}
	r = cr

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("turn aborted")
			o.say(ctx, log, r, msgInternal)
			turn = Turn{State: StateIdle, Err: fmt.Errorf("panic: %v", p)}
		}
		turn.Replies = cr.sent
	}()

	if cmd, ok := ParseCommand(msg.Text); ok {
		turn = o.confirm(ctx, log, msg.User, cmd, r)
	} else {
		turn = o.converse(ctx, log, msg, r)
	}

	ev := log.Info()
	if turn.Err != nil {
		ev = log.Warn().Err(turn.Err)
	}
	ev.Str("state", turn.State.String()).
		Str("intent", turn.Intent.String()).
		Str("draft_id", turn.DraftID).
		Str("action", string(turn.Action)).
		Int("pending_drafts", o.drafts.Count(msg.User)).
		Msg("turn finished")

	return turn
}

func (o *Orchestrator) converse(ctx context.Context, log zerolog.Logger, msg Message, r Replier) Turn {
	user := msg.User
	prior, _ := o.drafts.Latest(user)

	if o.isStart(msg) {
		o.say(ctx, log, r, msgGreeting)
		o.history.Set(user, []string{conversation.SystemPrompt(msg.Text, o.now())})
	} else {
		o.history.Append(user, conversation.WrapTurn(msg.Text))
	}

	text, retried, err := withRefresh(ctx, o.creds, log, func(ctx context.Context, tok *oauth2.Token) (string, error) {
		tools, err := o.tools.BuildAll(tok.AccessToken)
		if err != nil {
			return "", fmt.Errorf("tools.BuildAll failed: %w", err)
		}
		return o.model.Complete(ctx, o.history.Joined(user), tools)
	})
	if err != nil {
		o.say(ctx, log, r, failureText(err, retried, msgModelFailed, msgModelRetry))
		return Turn{State: StateIdle, Err: err}
	}

	ex := o.extractor.Extract(text)
	_, existed := o.drafts.Get(user, ex.ID)
	o.drafts.Save(user, ex.ID, ex.Draft)

	turn := Turn{Intent: ex.Intent, DraftID: ex.ID}

	if ex.Intent == draft.IntentPending {
		if cmd, ok := o.embeddedCommand(msg.Text, ex, prior); ok {
			if ex.ID != cmd.DraftID && !existed {
				o.drafts.Delete(user, ex.ID)
			}
			turn = o.confirm(ctx, log, user, cmd, r)
			turn.Intent = ex.Intent
			return turn
		}
	}

	switch ex.Intent {
	case draft.IntentCompleted:
		o.say(ctx, log, r, msgCompleted(ex.Text))
		o.history.Clear(user)
		turn.State = StateFinalized
	case draft.IntentFailed:
		o.say(ctx, log, r, msgIntentFailed)
		o.history.Clear(user)
		turn.State = StateIdle
	default:
		o.say(ctx, log, r, msgProposal(ex.Text))
		turn.State = StateAwaitingConfirmation
	}

	return turn
}

func (o *Orchestrator) confirm(ctx context.Context, log zerolog.Logger, user string, cmd Command, r Replier) Turn {
	id := cmd.DraftID
	if id == "" {
		id, _ = o.drafts.Latest(user)
	}

	d, ok := o.drafts.Get(user, id)
	if !ok {
		o.say(ctx, log, r, msgNoDraft)
		return Turn{State: StateIdle, DraftID: id, Err: fmt.Errorf("%w: %q", apperr.ErrUnresolvedDraft, id)}
	}

	if cmd.Cancel {
		o.drafts.Delete(user, id)
		o.say(ctx, log, r, msgCancelled(id))
		return Turn{State: StateIdle, DraftID: id}
	}

	turn := Turn{DraftID: id, Action: cmd.Action}

	_, retried, err := withRefresh(ctx, o.creds, log, func(ctx context.Context, tok *oauth2.Token) (struct{}, error) {
		return struct{}{}, o.gw.Execute(ctx, cmd.Action, tok, d)
	})
	if err != nil {
		o.say(ctx, log, r, failureText(err, retried, msgGatewayFailed, msgGatewayRetry))
		turn.State = StateAwaitingConfirmation
		turn.Err = err
		return turn
	}

	o.drafts.Delete(user, id)
	o.say(ctx, log, r, msgExecuted(cmd.Action, id))
	turn.State = StateFinalized

	return turn
}

// embeddedCommand resolves a confirm phrase inside a message the model has
// just answered. A named draft is always the target. Without one, the user's
// newest draft from before this turn is used, but only when the reply carries
// no new proposal for them to review.
func (o *Orchestrator) embeddedCommand(text string, ex draft.Extraction, prior string) (Command, bool) {
	action, ok := confirmAction(text)
	if !ok {
		return Command{}, false
	}

	if id, ok := draft.MentionedID(text); ok {
		return Command{Action: action, DraftID: id}, true
	}
	if prior == "" || hasProposal(ex.Draft) {
		return Command{}, false
	}

	return Command{Action: action, DraftID: prior}, true
}

func hasProposal(d draft.Draft) bool {
	return d.To != "" || d.Subject != "" || d.Body != ""
}

func (o *Orchestrator) isStart(msg Message) bool {
	return hasStartKeyword(msg.Text) || len(o.history.Get(msg.User)) == 0
}

func (o *Orchestrator) say(ctx context.Context, log zerolog.Logger, r Replier, text string) {
	if err := r.Reply(ctx, text); err != nil {
		log.Error().Err(err).Msg("reply failed")
	}
}

type countingReplier struct {
	next Replier
	sent int
}

func (c *countingReplier) Reply(ctx context.Context, text string) error {
	if err := c.next.Reply(ctx, text); err != nil {
		return err
	}
	c.sent++
	return nil
}

func failureText(err error, retried bool, first, again string) string {
	detail := auth.Redact(err.Error())

	var fetchErr *auth.CredentialFetchError
	switch {
	case retried:
		return again + detail
	case errors.As(err, &fetchErr):
		return msgTokenFailed + detail
	default:
		return first + detail
	}
}
