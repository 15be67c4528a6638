package service

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type emailService struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewEmailService(host string, port int, username, password, from string) EmailService {
	return &emailService{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (s *emailService) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.host, s.port, s.username, s.password)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email via gomail: %w", err)
	}
	return nil
}

func (s *emailService) SendDepositConfirmed(ctx context.Context, email string, amountCents int64, currency string) error {
	body := fmt.Sprintf("Hello,\n\nYour wallet deposit of %.2f %s was confirmed and is available in your balance.\n\nBest regards,\nThe AutoRenta Team",
		float64(amountCents)/100, currency)
	return s.send(email, "Deposit confirmed", body)
}

func (s *emailService) SendDepositFailed(ctx context.Context, email, reason string) error {
	body := fmt.Sprintf("Hello,\n\nYour wallet deposit could not be completed.\n\nReason: %s\n\nNo money left your account. You can retry the deposit at any time.\n\nBest regards,\nThe AutoRenta Team", reason)
	return s.send(email, "Deposit failed", body)
}

func (s *emailService) SendSettlementNotice(ctx context.Context, email, bookingID string, chargedCents, returnedCents int64) error {
	body := fmt.Sprintf("Hello,\n\nYour booking %s has been settled.\n\nCharged against your guarantee: %.2f\nReturned to you: %.2f\n\nBest regards,\nThe AutoRenta Team",
		bookingID, float64(chargedCents)/100, float64(returnedCents)/100)
	return s.send(email, fmt.Sprintf("Booking %s settled", bookingID), body)
}

func (s *emailService) SendDisputeOpened(ctx context.Context, email, bookingID string, claimedCents int64) error {
	body := fmt.Sprintf("Hello,\n\nThe owner has claimed %.2f against your guarantee on booking %s.\n\nYour guarantee stays on hold until the dispute is resolved. You will be notified of the outcome.\n\nBest regards,\nThe AutoRenta Team",
		float64(claimedCents)/100, bookingID)
	return s.send(email, fmt.Sprintf("Dispute opened on booking %s", bookingID), body)
}
