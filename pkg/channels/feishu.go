package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/microclaw/microclaw/pkg/bus"
	"github.com/microclaw/microclaw/pkg/config"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkdispatcher "github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

// FeishuChannel connects to Feishu over the long-connection WebSocket and
// replies with interactive cards.
type FeishuChannel struct {
	BaseChannel
	Config    *config.FeishuConfig
	Workspace string
	client    *lark.Client
	wsClient  *larkws.Client
}

// NewFeishuChannel creates a FeishuChannel.
func NewFeishuChannel(cfg *config.FeishuConfig, messageBus *bus.MessageBus, workspace string) *FeishuChannel {
	return &FeishuChannel{
		BaseChannel: BaseChannel{
			Bus:       messageBus,
			AllowFrom: cfg.AllowFrom,
		},
		Config:    cfg,
		Workspace: workspace,
	}
}

func (c *FeishuChannel) Name() string {
	return "feishu"
}

// getAgentName reads the display name from SOUL.md when the user has named
// the agent there, falling back to the default.
func (c *FeishuChannel) getAgentName() string {
	if c.Workspace == "" {
		return "Microclaw"
	}
	content, err := os.ReadFile(filepath.Join(c.Workspace, "SOUL.md"))
	if err != nil {
		return "Microclaw"
	}
	text := string(content)

	// "名字叫XX" / "名字是XX", Chinese punctuation included
	re := regexp.MustCompile(`名字[叫是]([^，,。.\n]+)`)
	if matches := re.FindStringSubmatch(text); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	reEn := regexp.MustCompile(`(?i)Named[:\s]+([^,\n]+)`)
	if matches := reEn.FindStringSubmatch(text); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	return "Microclaw"
}

func (c *FeishuChannel) Start() error {
	if !c.Config.Enabled || c.Config.AppID == "" || c.Config.AppSecret == "" {
		return nil
	}

	c.client = lark.NewClient(c.Config.AppID, c.Config.AppSecret)

	handler := larkdispatcher.NewEventDispatcher(c.Config.VerificationToken, c.Config.EncryptKey).
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			content := *event.Event.Message.Content
			log.Debug("Received Feishu event", "content", content)

			textContent := extractFeishuText(content)
			chatID := *event.Event.Message.ChatId
			senderID := *event.Event.Sender.SenderId.OpenId

			if !c.IsAllowed(senderID) {
				log.Warn("Feishu message from unauthorized user", "sender", senderID)
				return nil
			}

			c.Bus.PublishInbound(bus.InboundMessage{
				Channel:  c.Name(),
				SenderID: senderID,
				ChatID:   chatID,
				Content:  textContent,
			})
			return nil
		})

	c.wsClient = larkws.NewClient(
		c.Config.AppID,
		c.Config.AppSecret,
		larkws.WithEventHandler(handler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	go func() {
		log.Info("Starting Feishu WebSocket client")
		if err := c.wsClient.Start(context.Background()); err != nil {
			log.Error("Feishu WebSocket error", "error", err)
		}
	}()

	log.Info("Feishu bot started")
	return nil
}

// extractFeishuText pulls the plain text out of a Feishu message payload,
// falling back to the raw JSON for rich content.
func extractFeishuText(content string) string {
	var msgContent struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &msgContent); err == nil && msgContent.Text != "" {
		return msgContent.Text
	}

	var generic map[string]interface{}
	if err := json.Unmarshal([]byte(content), &generic); err == nil {
		if _, ok := generic["content"]; ok {
			return fmt.Sprintf("[Rich Text] %s", content)
		}
	}
	return content
}

func (c *FeishuChannel) Stop() error {
	// The WebSocket client has no explicit stop; it dies with the process.
	return nil
}

func (c *FeishuChannel) Send(msg bus.OutboundMessage) error {
	if c.client == nil {
		return fmt.Errorf("feishu client not initialized")
	}
	if msg.Content == "" {
		return nil
	}

	receiveIDType := larkim.ReceiveIdTypeOpenId
	if strings.HasPrefix(msg.ChatID, "oc_") {
		receiveIDType = larkim.ReceiveIdTypeChatId
	}

	cardContent := map[string]interface{}{
		"config": map[string]interface{}{
			"wide_screen_mode": true,
		},
		"header": map[string]interface{}{
			"title": map[string]interface{}{
				"tag":     "plain_text",
				"content": c.getAgentName(),
			},
			"template": "blue",
		},
		"elements": []interface{}{
			map[string]interface{}{
				"tag": "div",
				"text": map[string]interface{}{
					"tag":     "lark_md",
					"content": msg.Content,
				},
			},
		},
	}
	contentJSON, _ := json.Marshal(cardContent)

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(msg.ChatID).
			MsgType(larkim.MsgTypeInteractive).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.client.Im.Message.Create(context.Background(), req)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return fmt.Errorf("feishu error: %d %s", resp.Code, resp.Msg)
	}
	return nil
}
