package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"

	"gopkg.in/mail.v2"

	"ordernotify/internal/config"
	"ordernotify/internal/domain"
	"ordernotify/internal/invoice"
)

const emailTemplate = `<div style="font-family:Arial;max-width:600px;margin:auto;border:1px solid #e5e5e5">
  <div style="background:#6b4f3f;color:white;padding:12px">
    <h2>New Order Received</h2>
  </div>
  <div style="padding:16px;color:#333">
    <p><b>Order ID:</b> {{.OrderID}}</p>
    <p><b>Date:</b> {{.FormattedTime}}</p>
    <p>
      <b>{{.Customer.Name}}</b><br>
      {{.Customer.Email}}<br>
      {{.Address}}
    </p>
    <table width="100%" cellpadding="8" cellspacing="0" border="1" style="border-collapse:collapse">
      <tr style="background:#f5efe9">
        <th align="left">Item</th>
        <th>Qty</th>
        <th>Price</th>
      </tr>
{{- range .Items}}
      <tr><td>{{.Name}}</td><td>{{.Qty}}</td><td>{{money .Price}}</td></tr>
{{- end}}
    </table>
    <h3 style="text-align:right">Total: {{money .Total}}</h3>
  </div>
  <div style="background:#f5efe9;padding:10px;font-size:12px;text-align:center">
    This is an automated order notification.
  </div>
</div>
`

var emailBody = template.Must(template.New("order").Funcs(template.FuncMap{
	"money": domain.Money,
}).Parse(emailTemplate))

// mailSender is satisfied by *mail.Dialer
type mailSender interface {
	DialAndSend(m ...*mail.Message) error
}

// EmailChannel отправляет письмо со счётом в PDF по SMTP через TLS
type EmailChannel struct {
	cfg      config.Email
	invoices invoice.Generator
	sender   mailSender
	ready    error
}

var _ Channel = (*EmailChannel)(nil)

func NewEmailChannel(cfg config.Email, invoices invoice.Generator) *EmailChannel {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	// implicit TLS on 465, STARTTLS otherwise
	d.SSL = cfg.Port == 465
	if !d.SSL {
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	d.Timeout = cfg.Timeout
	d.RetryFailure = false
	return newEmailChannel(cfg, invoices, d)
}

func newEmailChannel(cfg config.Email, invoices invoice.Generator, sender mailSender) *EmailChannel {
	return &EmailChannel{
		cfg:      cfg,
		invoices: invoices,
		sender:   sender,
		ready:    missingConfig(cfg.Missing()),
	}
}

func (c *EmailChannel) Kind() domain.Channel { return domain.ChannelEmail }

func (c *EmailChannel) Ready() error { return c.ready }

func (c *EmailChannel) Deliver(ctx context.Context, o *domain.Order) error {
	if c.ready != nil {
		return c.ready
	}

	inv, err := c.invoices.Generate(ctx, o)
	if err != nil {
		return domain.Wrap(domain.KindInvoiceGenerationFailed, err)
	}

	m, err := c.compose(o, inv)
	if err != nil {
		return domain.Wrap(domain.KindDeliveryFailed, err)
	}
	if err := c.sender.DialAndSend(m); err != nil {
		return domain.Wrap(domain.KindDeliveryFailed, err)
	}
	return nil
}

func (c *EmailChannel) compose(o *domain.Order, inv *invoice.Invoice) (*mail.Message, error) {
	var body bytes.Buffer
	if err := emailBody.Execute(&body, o); err != nil {
		return nil, fmt.Errorf("render email body: %w", err)
	}

	m := mail.NewMessage()
	m.SetHeader("From", c.cfg.User)
	m.SetHeader("To", c.cfg.To)
	m.SetHeader("Subject", "New Order – "+o.OrderID)
	m.SetBody("text/html", body.String())

	name := invoice.FileName(o.OrderID)
	data := inv.Data
	m.Attach(name,
		mail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}),
		mail.SetHeader(map[string][]string{"Content-Type": {inv.ContentType + `; name="` + name + `"`}}),
	)
	return m, nil
}
