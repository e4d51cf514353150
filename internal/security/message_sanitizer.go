package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MessageSanitizer は外部プロバイダーが返したエラーメッセージからHTMLを除去する。
// 結果はAPIレスポンスとLastErrorにそのまま載せるプレーンテキスト。
// HTMLとして描画する側は改めてエスケープすること。
type MessageSanitizer struct {
	policy *bluemonday.Policy
}

// NewMessageSanitizer は全タグを除去するポリシーでMessageSanitizerを生成する。
func NewMessageSanitizer() *MessageSanitizer {
	return &MessageSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeMessage はタグを除去し、エンティティを戻して前後の空白を詰める。
func (s *MessageSanitizer) SanitizeMessage(msg string) string {
	stripped := s.policy.Sanitize(msg)
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}
