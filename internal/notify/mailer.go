package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"calbook/internal/config"
	"calbook/internal/models"

	"github.com/rs/zerolog"
	gomail "gopkg.in/gomail.v2"
)

// Mailer sends booking lifecycle emails to the booker over SMTP.
// Times are rendered in the booking's display timezone when it loads,
// UTC otherwise.
type Mailer struct {
	dialer   *gomail.Dialer
	from     string
	hostName string
	logger   *zerolog.Logger
}

func NewMailer(cfg config.SMTPConfig, hostName string, logger *zerolog.Logger) *Mailer {
	return &Mailer{
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:     cfg.From,
		hostName: hostName,
		logger:   logger,
	}
}

func (m *Mailer) SendBookingConfirmed(ctx context.Context, booking *models.Booking) error {
	data := m.mailData(booking)
	subject := fmt.Sprintf("Booking Confirmed: %s", booking.EventTypeTitle)
	return m.send(ctx, booking.BookerEmail, subject, confirmedTmpl, data)
}

func (m *Mailer) SendBookingCancelled(ctx context.Context, booking *models.Booking) error {
	data := m.mailData(booking)
	data.Reason = booking.CancellationReason
	subject := fmt.Sprintf("Booking Cancelled: %s", booking.EventTypeTitle)
	return m.send(ctx, booking.BookerEmail, subject, cancelledTmpl, data)
}

func (m *Mailer) SendBookingRescheduled(ctx context.Context, old, replacement *models.Booking) error {
	data := m.mailData(replacement)
	data.OldStartTime = formatInZone(old.StartTime, replacement.Timezone)
	subject := fmt.Sprintf("Booking Rescheduled: %s", replacement.EventTypeTitle)
	return m.send(ctx, replacement.BookerEmail, subject, rescheduledTmpl, data)
}

func (m *Mailer) mailData(b *models.Booking) bookingMailData {
	tz := b.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return bookingMailData{
		BookerName:     b.BookerName,
		HostName:       m.hostName,
		EventTypeTitle: b.EventTypeTitle,
		StartTime:      formatInZone(b.StartTime, tz),
		EndTime:        formatInZone(b.EndTime, tz),
		Timezone:       tz,
		UID:            b.UID,
	}
}

func (m *Mailer) send(ctx context.Context, to, subject string, tmpl *template.Template, data bookingMailData) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body.String())

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info().Str("to", to).Str("subject", subject).Msg("Email sent")
	return nil
}

func formatInZone(t time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format("Mon, 2 Jan 2006 15:04")
}
