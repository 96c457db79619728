// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"errors"
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ErrInvalidImageURL はポスターURLとして受け付けられない値を表す。
var ErrInvalidImageURL = errors.New("image URL must be an absolute http(s) URL")

// ErrUnsafeText はHTMLタグや文字参照を含むテキストを表す。
var ErrUnsafeText = errors.New("text must not contain HTML markup or character references")

// posterNotAvailable は映画APIがポスター無しの場合に返す値。
const posterNotAvailable = "N/A"

// MetadataSanitizer はクライアントから送られる映画メタデータを保存前に検証する。
// タイトル等はプレーンテキストのみ受け付け、値を書き換えずにそのまま保存させる。
type MetadataSanitizer struct {
	policy *bluemonday.Policy
}

// NewMetadataSanitizer はMetadataSanitizerを生成する。
func NewMetadataSanitizer() *MetadataSanitizer {
	return &MetadataSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Text は前後の空白を除去したテキストを返す。
// StrictPolicyの出力が単純なエスケープ結果と一致しない値（タグや文字参照を含む値）は
// ErrUnsafeTextとして拒否する。
func (s *MetadataSanitizer) Text(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", nil
	}
	if s.policy.Sanitize(v) != html.EscapeString(v) {
		return "", ErrUnsafeText
	}
	return v, nil
}

// ImageURL はポスターURLを検証して正規化した値を返す。
// 空文字列と"N/A"はポスター無しとして空文字列を返す。
func (s *MetadataSanitizer) ImageURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == posterNotAvailable {
		return "", nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidImageURL
	}
	if !isAllowedScheme(u.Scheme) || u.Host == "" || u.User != nil {
		return "", ErrInvalidImageURL
	}
	return u.String(), nil
}
