package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSigner_KnownVector(t *testing.T) {
	s := NewSigner("changeme-C3z9vi54")
	sig := s.Sign([]byte(`{"newNumber":"123456789012345","kioskMode":false}`))
	assert.Equal(t, "0444233A6C81F87855D5FFF49585AE93CEFCC601", sig)
}

func TestSigner_StripsWhitespaceInsideStrings(t *testing.T) {
	s := NewSigner("secret")

	// 字符串值里的空格也会被剥掉，签名与无空格版本一致
	withSpace := s.Sign([]byte(`{"a":1,"b":"x y"}`))
	withoutSpace := s.Sign([]byte(`{"a":1,"b":"xy"}`))
	assert.Equal(t, withoutSpace, withSpace)
	assert.Equal(t, "47F110F4174A800157E54C35C15839CCE347D45F", withSpace)
}

func TestSigner_IgnoresFormatting(t *testing.T) {
	s := NewSigner("secret")
	compact := s.Sign([]byte(`{"a":1}`))
	pretty := s.Sign([]byte("{\n  \"a\": 1\n}"))
	assert.Equal(t, compact, pretty)
}

func TestSigner_SecretChangesSignature(t *testing.T) {
	body := []byte(`{"a":1}`)
	assert.NotEqual(t, NewSigner("one").Sign(body), NewSigner("two").Sign(body))
}

func TestStripWhitespace(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripWhitespace("{ \"a\" : 1 }\n"))
	assert.Equal(t, "", StripWhitespace(" \t\r\n"))
}
