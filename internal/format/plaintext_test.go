package format_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hal9000y/mail-assistant/internal/format"
)

func TestPlainText(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain_text_untouched",
			input:    "田中様\n\nお世話になっております。 A &amp; B\n",
			expected: "田中様\n\nお世話になっております。 A &amp; B\n",
		},
		{
			name:     "angle_bracket_address_untouched",
			input:    "返信先: <bob@example.com> までお願いします",
			expected: "返信先: <bob@example.com> までお願いします",
		},
		{
			name:     "entities_without_tags_untouched",
			input:    "Tom &amp; Jerry &lt;3",
			expected: "Tom &amp; Jerry &lt;3",
		},
		{
			name:     "address_kept_inside_markup",
			input:    "<p>返信先: <bob@example.com> までお願いします</p><p>以上</p>",
			expected: "返信先: <bob@example.com> までお願いします\n\n以上",
		},
		{
			name:     "paragraphs_and_breaks",
			input:    "<p>こんにちは</p><p>よろしく<br>お願いします</p>",
			expected: "こんにちは\n\nよろしく\nお願いします",
		},
		{
			name:     "entities_decoded",
			input:    "<b>A &amp; B</b> &lt;info&gt;",
			expected: "A & B <info>",
		},
		{
			name:     "list_items",
			input:    "<ul><li>資料</li><li>日程</li></ul>以上です",
			expected: "- 資料\n- 日程\n\n以上です",
		},
		{
			name:     "script_dropped",
			input:    "<div>本文</div><script>alert(1)</script><style>p{}</style>",
			expected: "本文",
		},
		{
			name:     "blank_runs_collapsed",
			input:    "<p>a</p><p></p><p></p><p>b</p>",
			expected: "a\n\nb",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, format.PlainText(tc.input))
		})
	}
}
