package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseComposite(t *testing.T) {
	addr := ParseComposite("telegram:42")
	assert.Equal(t, "telegram", addr.Channel)
	assert.Equal(t, "42", addr.ChatID)
}

func TestParseCompositeSplitsOnFirstColonOnly(t *testing.T) {
	addr := ParseComposite("feishu:oc_abc:def")
	assert.Equal(t, "feishu", addr.Channel)
	assert.Equal(t, "oc_abc:def", addr.ChatID)
}

func TestParseCompositeNoColonFallsBackToDefaultChannel(t *testing.T) {
	addr := ParseComposite("direct")
	assert.Equal(t, DefaultOriginChannel, addr.Channel)
	assert.Equal(t, "direct", addr.ChatID)
}

func TestAddressCompositeRoundTrip(t *testing.T) {
	addr := Address{Channel: "telegram", ChatID: "42"}
	assert.Equal(t, addr, ParseComposite(addr.Composite()))
}

func TestResolveOriginNonSystemUsesOwnAddress(t *testing.T) {
	msg := InboundMessage{Channel: "telegram", ChatID: "42"}
	origin := msg.ResolveOrigin()
	assert.Equal(t, Address{Channel: "telegram", ChatID: "42"}, origin)
}

func TestResolveOriginSystemPrefersStructuredField(t *testing.T) {
	msg := InboundMessage{
		Channel: SystemChannel,
		ChatID:  "wrong:address",
		Origin:  &Address{Channel: "dingtalk", ChatID: "cid123"},
	}
	origin := msg.ResolveOrigin()
	assert.Equal(t, Address{Channel: "dingtalk", ChatID: "cid123"}, origin)
}

func TestResolveOriginSystemFallsBackToCompositeDecode(t *testing.T) {
	msg := InboundMessage{Channel: SystemChannel, ChatID: "telegram:42"}
	origin := msg.ResolveOrigin()
	assert.Equal(t, Address{Channel: "telegram", ChatID: "42"}, origin)
}

func TestSessionKeyStableForAddress(t *testing.T) {
	addr := Address{Channel: "feishu", ChatID: "ou_x"}
	assert.Equal(t, "feishu:ou_x", addr.SessionKey())
}
