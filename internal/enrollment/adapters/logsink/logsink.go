// Package logsink provides log-only notifier and provisioner adapters used
// when no broker is configured.
package logsink

import (
	"context"
	"log/slog"

	"careon/internal/enrollment/models"
)

// Notifier logs each notification at info level.
type Notifier struct {
	logger *slog.Logger
}

func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, msg models.Notification) error {
	n.logger.InfoContext(ctx, "enrollment notification",
		"event", string(msg.Type),
		"application_id", msg.ApplicationID.String(),
		"user_id", msg.UserID.String(),
		"status", string(msg.Status),
		"phone_number", maskPhone(msg.PhoneNumber),
	)
	return nil
}

// Provisioner logs provisioning requests instead of opening accounts.
type Provisioner struct {
	logger *slog.Logger
}

func NewProvisioner(logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{logger: logger}
}

func (p *Provisioner) Provision(ctx context.Context, app *models.Application) error {
	p.logger.InfoContext(ctx, "merchant account provisioning requested",
		"application_id", app.ID().String(),
		"user_id", app.UserID().String(),
		"business_number", app.Business().Number,
	)
	return nil
}

// maskPhone keeps the last four digits.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	masked := []byte(phone)
	for i := 0; i < len(masked)-4; i++ {
		if masked[i] >= '0' && masked[i] <= '9' {
			masked[i] = '*'
		}
	}
	return string(masked)
}
