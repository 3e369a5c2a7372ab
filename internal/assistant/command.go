package assistant

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hal9000y/mail-assistant/internal/draft"
	"github.com/hal9000y/mail-assistant/internal/gservice"
)

var (
	commandRe = regexp.MustCompile(`^(下書き保存して|保存して|送信して|キャンセルして|取り消して|取り消しして)(?:ください)?$`)
	startRe   = regexp.MustCompile(`下書き|送信|ラベル|メール`)
	saveRe    = regexp.MustCompile(`保存して`)
	sendRe    = regexp.MustCompile(`送信して`)
)

// Command is a bare confirm or cancel instruction for a pending draft.
type Command struct {
	Action  gservice.Action
	Cancel  bool
	DraftID string
}

// ParseCommand recognizes messages that consist only of a confirm or cancel
// phrase, optionally naming a draft ("draftId: d1 を送信して").
// Anything longer is a request for the model, even if it contains 送信して.
func ParseCommand(text string) (Command, bool) {
	id, _ := draft.MentionedID(text)

	rest := strings.TrimFunc(draft.StripMention(text), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || r == 'を' || r == 'の'
	})

	m := commandRe.FindStringSubmatch(rest)
	if m == nil {
		return Command{}, false
	}

	cmd := Command{DraftID: id}
	switch m[1] {
	case "送信して":
		cmd.Action = gservice.ActionSendEmail
	case "保存して", "下書き保存して":
		cmd.Action = gservice.ActionCreateDraft
	default:
		cmd.Cancel = true
	}

	return cmd, true
}

// confirmAction finds a confirm phrase anywhere in a longer message, such as
// "draftId: d1 の内容で問題ないので送信してください". 保存して wins over 送信して.
func confirmAction(text string) (gservice.Action, bool) {
	switch {
	case saveRe.MatchString(text):
		return gservice.ActionCreateDraft, true
	case sendRe.MatchString(text):
		return gservice.ActionSendEmail, true
	default:
		return "", false
	}
}

func hasStartKeyword(text string) bool {
	return startRe.MatchString(text)
}
