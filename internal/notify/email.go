package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"storefront/internal/config"
	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// MailSender is the part of *mail.Client the email sink uses.
type MailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

var emailTemplates = template.Must(template.New("email").Parse(`
{{define "items"}}
<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
	<thead>
		<tr style="background-color: #f0f0f0;">
			<th style="padding: 8px; text-align: left;">Product</th>
			<th style="padding: 8px; text-align: right;">Quantity</th>
			<th style="padding: 8px; text-align: right;">Unit price</th>
			<th style="padding: 8px; text-align: right;">Subtotal</th>
		</tr>
	</thead>
	<tbody>
	{{range .Items}}
		<tr>
			<td style="padding: 8px;">{{.Title}}</td>
			<td style="padding: 8px; text-align: right;">{{.Quantity}}</td>
			<td style="padding: 8px; text-align: right;">{{.UnitPrice.StringFixed 2}}</td>
			<td style="padding: 8px; text-align: right;">{{.Subtotal.StringFixed 2}}</td>
		</tr>
	{{end}}
	</tbody>
</table>
<p>Subtotal: {{.Subtotal.StringFixed 2}}<br>
Discount: {{.Discount.StringFixed 2}}<br>
Shipping: {{.Shipping.StringFixed 2}}<br>
Tax: {{.Tax.StringFixed 2}}<br>
<strong>Total: {{.Total.StringFixed 2}}</strong></p>
{{end}}

{{define "order.created"}}
<h2>Thank you for your order {{.OrderNumber}}</h2>
<p>We have received your order and will let you know when it ships.</p>
{{template "items" .}}
{{end}}

{{define "order.shipped"}}
<h2>Order {{.OrderNumber}} is on its way</h2>
{{with .Tracking}}
<p>Carrier: {{.Carrier}}<br>
Tracking number: {{.Number}}
{{if .URL}}<br><a href="{{.URL}}">Track your parcel</a>{{end}}</p>
{{end}}
{{end}}

{{define "order.delivered"}}
<h2>Order {{.OrderNumber}} has been delivered</h2>
<p>We hope you enjoy your purchase.</p>
{{end}}

{{define "order.cancelled"}}
<h2>Order {{.OrderNumber}} has been cancelled</h2>
{{with .Cancellation}}
<p>Reason: {{.Reason}}</p>
{{if eq .RefundStatus "pending"}}<p>Your refund is being processed.</p>{{end}}
{{end}}
{{end}}

{{define "payment.confirmed"}}
<h2>Payment received for order {{.OrderNumber}}</h2>
<p>Your payment of {{.Total.StringFixed 2}} has been confirmed.<br>
Your order is being prepared.</p>
{{end}}
`))

var emailSubjects = map[Event]string{
	EventOrderCreated:     "Order %s confirmed",
	EventOrderShipped:     "Order %s has shipped",
	EventOrderDelivered:   "Order %s delivered",
	EventOrderCancelled:   "Order %s cancelled",
	EventPaymentConfirmed: "Payment received for order %s",
}

// EmailSink emails the order owner. Orders without a resolved owner email are skipped.
type EmailSink struct {
	sender MailSender
	from   string
	logger zerolog.Logger
}

// NewEmailSink creates an SMTP client from cfg.
func NewEmailSink(cfg config.SMTPConfig, logger zerolog.Logger) (*EmailSink, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return NewEmailSinkWithSender(client, cfg.From, logger), nil
}

// NewEmailSinkWithSender creates an email sink on an existing sender.
func NewEmailSinkWithSender(sender MailSender, from string, logger zerolog.Logger) *EmailSink {
	return &EmailSink{
		sender: sender,
		from:   from,
		logger: logger.With().Str("sink", "email").Logger(),
	}
}

func (s *EmailSink) NotifyOrderCreated(ctx context.Context, order *model.Order) error {
	return s.send(ctx, EventOrderCreated, order)
}

func (s *EmailSink) NotifyOrderShipped(ctx context.Context, order *model.Order) error {
	return s.send(ctx, EventOrderShipped, order)
}

func (s *EmailSink) NotifyOrderDelivered(ctx context.Context, order *model.Order) error {
	return s.send(ctx, EventOrderDelivered, order)
}

func (s *EmailSink) NotifyOrderCancelled(ctx context.Context, order *model.Order) error {
	return s.send(ctx, EventOrderCancelled, order)
}

func (s *EmailSink) NotifyPaymentConfirmed(ctx context.Context, order *model.Order) error {
	return s.send(ctx, EventPaymentConfirmed, order)
}

func (s *EmailSink) send(ctx context.Context, event Event, order *model.Order) error {
	if order.User == nil || order.User.Email == "" {
		s.logger.Debug().Str("order_id", order.ID.String()).Msg("order has no recipient, skipping email")
		return nil
	}

	msg, err := s.buildMessage(event, order)
	if err != nil {
		return err
	}

	if err := s.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s email: %w", event, err)
	}

	s.logger.Info().
		Str("event", string(event)).
		Str("order_number", order.OrderNumber).
		Msg("email sent")
	return nil
}

func (s *EmailSink) buildMessage(event Event, order *model.Order) (*mail.Msg, error) {
	var body bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&body, string(event), order); err != nil {
		return nil, fmt.Errorf("failed to render %s email: %w", event, err)
	}

	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(order.User.Email); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(fmt.Sprintf(emailSubjects[event], order.OrderNumber))
	msg.SetBodyString(mail.TypeTextHTML, body.String())

	return msg, nil
}
