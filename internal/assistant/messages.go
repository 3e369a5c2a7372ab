package assistant

import (
	"fmt"

	"github.com/hal9000y/mail-assistant/internal/gservice"
)

const (
	msgGreeting      = "📨 アシスタントを起動したよ！🤖"
	msgTokenFailed   = "⚠️ connect-token-server からトークン取得に失敗しました: "
	msgModelFailed   = "⚠️ OpenAI APIエラー: "
	msgModelRetry    = "⚠️ トークン更新後もOpenAI APIエラーが発生しました: "
	msgGatewayFailed = "⚠️ Gmail API連携エラー: "
	msgGatewayRetry  = "⚠️ トークン更新後もGmail API連携エラーが発生しました: "
	msgIntentFailed  = "⚠️ エラーかも…トークンや権限を確認してね。"
	msgNoDraft       = "⚠️ draftIdが見つかりません。直近のメール作成後に「保存して」や「送信して」と指示してください。"
	msgInternal      = "⚠️ 内部エラーが発生しました。もう一度試してね。"
)

func msgCompleted(text string) string {
	return "✅ Gmail 操作を完了したよ！\n\n" + text + "\n\n💬 必要なら書き続けて指示してね。"
}

func msgProposal(text string) string {
	return "📝 " + text + "\n\n問題なければ「送信して」「保存して」など返信してね。やめる場合は「キャンセルして」と返信してね。"
}

func msgExecuted(action gservice.Action, id string) string {
	if action == gservice.ActionSendEmail {
		return fmt.Sprintf("✅ メールを送信しました（draftId: %s）", id)
	}
	return fmt.Sprintf("✅ 下書きを保存しました（draftId: %s）", id)
}

func msgCancelled(id string) string {
	return fmt.Sprintf("🗑️ 下書きを取り消しました（draftId: %s）", id)
}
