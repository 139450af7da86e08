package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"ordernotify/internal/config"
	"ordernotify/internal/domain"
)

// responses larger than this are truncated in error details
const maxErrorBody = 64 << 10

// ChatChannel отправляет заказ в WhatsApp Cloud API: сначала картинки позиций,
// затем одно текстовое сообщение
type ChatChannel struct {
	cfg    config.Chat
	client *http.Client
	ready  error
}

var _ Channel = (*ChatChannel)(nil)

type waMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Image            *waImage `json:"image,omitempty"`
	Text             *waText  `json:"text,omitempty"`
}

type waImage struct {
	Link string `json:"link"`
}

type waText struct {
	Body string `json:"body"`
}

func NewChatChannel(cfg config.Chat) *ChatChannel {
	return &ChatChannel{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		ready:  missingConfig(cfg.Missing()),
	}
}

func (c *ChatChannel) Kind() domain.Channel { return domain.ChannelChat }

func (c *ChatChannel) Ready() error { return c.ready }

func (c *ChatChannel) messagesURL() string {
	return strings.TrimRight(c.cfg.APIURL, "/") + "/" + c.cfg.PhoneNumberID + "/messages"
}

// Deliver fails fast: an image error aborts the remaining images and the text.
func (c *ChatChannel) Deliver(ctx context.Context, o *domain.Order) error {
	if c.ready != nil {
		return c.ready
	}

	for _, it := range o.Items {
		if it.Image == "" {
			continue
		}
		msg := waMessage{Type: "image", Image: &waImage{Link: it.Image}}
		if err := c.send(ctx, msg); err != nil {
			return domain.Wrap(domain.KindDeliveryFailed, fmt.Errorf("WhatsApp image failed: %w", err))
		}
	}

	msg := waMessage{Type: "text", Text: &waText{Body: FormatOrderText(o)}}
	if err := c.send(ctx, msg); err != nil {
		return domain.Wrap(domain.KindDeliveryFailed, fmt.Errorf("WhatsApp text failed: %w", err))
	}
	return nil
}

func (c *ChatChannel) send(ctx context.Context, msg waMessage) error {
	msg.MessagingProduct = "whatsapp"
	msg.To = c.cfg.To
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if text := strings.TrimSpace(string(raw)); text != "" {
			return fmt.Errorf("%s", text)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// FormatOrderText текст сообщения продавцу
func FormatOrderText(o *domain.Order) string {
	var b strings.Builder
	b.WriteString("🛒 NEW ORDER\n")
	b.WriteString("Order ID: " + o.OrderID + "\n")
	b.WriteString("Time: " + o.FormattedTime() + "\n")
	b.WriteString("\n")
	b.WriteString("Name: " + o.Customer.Name + "\n")
	b.WriteString("Email: " + o.Customer.Email + "\n")
	b.WriteString("Address: " + o.Address + "\n")
	b.WriteString("\n")
	b.WriteString("Items:\n")
	for _, it := range o.Items {
		b.WriteString("• " + it.Name + " × " + strconv.FormatInt(it.Qty, 10) + " = " + domain.Money(it.Subtotal()) + "\n")
	}
	b.WriteString("\n")
	b.WriteString("Total: " + domain.Money(o.Total))
	return b.String()
}
