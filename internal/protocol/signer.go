package protocol

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"unicode"
)

// HeaderResponseSignature 签名响应头
const HeaderResponseSignature = "X-Response-Signature"

// Signer 对下发的配置 JSON 做完整性签名
type Signer struct {
	secret string
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: secret}
}

// Sign 计算 X-Response-Signature 的值
// 算法: 去掉 JSON 中所有空白字符(包括字符串值内部的)，
// 前置共享密钥后取 SHA-1，十六进制大写输出。
func (s *Signer) Sign(jsonBody []byte) string {
	stripped := StripWhitespace(string(jsonBody))
	sum := sha1.Sum([]byte(s.secret + stripped))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// StripWhitespace 删除所有空白字符
func StripWhitespace(in string) string {
	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
