package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
	"github.com/kirillkom/bill-extractor/internal/core/ports"
)

const (
	notificationUsername = "Bill"
	notificationAuthor   = "New Bill"
	splitDivisor         = 2.0
)

type NotifyBillUseCase struct {
	sender ports.WebhookSender
	logger *slog.Logger
}

func NewNotifyBillUseCase(sender ports.WebhookSender, logger *slog.Logger) *NotifyBillUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyBillUseCase{sender: sender, logger: logger.With("component", "bill_notifier")}
}

func (uc *NotifyBillUseCase) Notify(ctx context.Context, body string) error {
	bill, err := ParseBill(body)
	if err != nil {
		return err
	}
	if err := uc.sender.Send(ctx, RenderBill(bill)); err != nil {
		return domain.WrapError(domain.ErrDeliveryFailure, "send notification", err)
	}
	uc.logger.Info("notify.sent", "company", bill.Company, "date", bill.Date)
	return nil
}

// ParseBill fails loudly on any absent or mistyped field instead of defaulting.
func ParseBill(body string) (domain.Bill, error) {
	if strings.TrimSpace(body) == "" {
		return domain.Bill{}, domain.WrapError(domain.ErrInvalidInput, "parse bill", errors.New("no message found"))
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return domain.Bill{}, domain.WrapError(domain.ErrInvalidInput, "parse bill", err)
	}

	amount, ok := fields["amount"].(float64)
	if !ok {
		return domain.Bill{}, missingField("amount")
	}
	company, err := stringField(fields, "company")
	if err != nil {
		return domain.Bill{}, err
	}
	subject, err := stringField(fields, "subject")
	if err != nil {
		return domain.Bill{}, err
	}
	date, err := stringField(fields, "date")
	if err != nil {
		return domain.Bill{}, err
	}
	return domain.Bill{Amount: amount, Company: company, Subject: subject, Date: date}, nil
}

func RenderBill(bill domain.Bill) domain.WebhookMessage {
	return domain.WebhookMessage{
		Username: notificationUsername,
		Embeds: []domain.WebhookEmbed{{
			Author:      domain.WebhookAuthor{Name: notificationAuthor},
			Title:       bill.Company,
			Description: bill.Subject,
			Fields: []domain.WebhookField{
				{Name: "Due Date", Value: bill.Date, Inline: true},
				{Name: "Amount", Value: formatCurrency(bill.Amount), Inline: true},
				{Name: "Split", Value: formatCurrency(bill.Amount / splitDivisor), Inline: true},
			},
		}},
	}
}

func formatCurrency(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}

func stringField(fields map[string]any, name string) (string, error) {
	v, ok := fields[name].(string)
	if !ok {
		return "", missingField(name)
	}
	return v, nil
}

func missingField(name string) error {
	return domain.WrapError(domain.ErrMissingField, "parse bill", fmt.Errorf("no %s", name))
}
