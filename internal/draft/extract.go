package draft

import (
	"regexp"
	"strings"
	"time"
)

// Intent classifies assistant output.
type Intent int

const (
	IntentPending Intent = iota
	IntentCompleted
	IntentFailed
)

func (i Intent) String() string {
	switch i {
	case IntentCompleted:
		return "completed"
	case IntentFailed:
		return "failed"
	default:
		return "pending"
	}
}

// The markers below are lexical heuristics over free-form model output, not a
// parser. Confirmation handling depends on their exact matching behavior.
var (
	idRe       = regexp.MustCompile(`draftId: ([a-zA-Z0-9\-_]+)`)
	mentionRe  = regexp.MustCompile(`draftId[:：]?\s*([a-zA-Z0-9\-_]+)`)
	bodyRe     = regexp.MustCompile(`本文[:：]\s*([^\n]*)`)
	subjectRe  = regexp.MustCompile(`件名[:：]\s*(.+)`)
	toRe       = regexp.MustCompile(`宛先[:：]\s*(.+)`)
	threadRe   = regexp.MustCompile(`threadId[:：]?\s*([a-zA-Z0-9\-_]+)`)
	completeRe = regexp.MustCompile(`下書きが作成|送信しました|ラベルを追加|保存しました`)
	failedRe   = regexp.MustCompile(`認証|エラー`)
)

// Extraction is the result of scanning one assistant reply.
type Extraction struct {
	ID     string
	Draft  Draft
	Intent Intent
	// Text is the reply, annotated with a draftId line when one was minted.
	Text string
}

// Extractor pulls a provisional draft out of assistant text.
type Extractor struct {
	newID func() string
	now   func() time.Time
}

// NewExtractor creates an Extractor minting ids with newID.
func NewExtractor(newID func() string, now func() time.Time) *Extractor {
	if newID == nil {
		newID = NewID
	}
	if now == nil {
		now = time.Now
	}
	return &Extractor{newID: newID, now: now}
}

// Extract scans raw for a draft id, labeled fields and an intent.
func (e *Extractor) Extract(raw string) Extraction {
	text := raw

	id := submatch(idRe, text)
	if id == "" {
		id = e.newID()
		text += "\ndraftId: " + id
	}

	return Extraction{
		ID: id,
		Draft: Draft{
			Body:      submatch(bodyRe, text),
			Subject:   submatch(subjectRe, text),
			To:        submatch(toRe, text),
			ThreadID:  submatch(threadRe, text),
			CreatedAt: e.now(),
		},
		Intent: Classify(text),
		Text:   text,
	}
}

// Classify returns the intent of text. Completion phrasing wins over error phrasing.
func Classify(text string) Intent {
	switch {
	case completeRe.MatchString(text):
		return IntentCompleted
	case failedRe.MatchString(text):
		return IntentFailed
	default:
		return IntentPending
	}
}

// MentionedID returns a draft id referenced in a user message.
func MentionedID(text string) (string, bool) {
	id := submatch(mentionRe, text)
	return id, id != ""
}

// StripMention removes draft id references from a user message.
func StripMention(text string) string {
	return mentionRe.ReplaceAllString(text, "")
}

func submatch(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
