// Package notify carries user-facing notifications from the console
// components to the operator and to the systems that keep their history.
package notify

import (
	"time"

	"github.com/LexiconIndonesia/crawler-admin-service/common/models"
	"github.com/google/uuid"
)

// Category is the severity shown with a notification.
type Category = models.Severity

const (
	CategorySuccess = models.SeveritySuccess
	CategoryError   = models.SeverityError
	CategoryWarning = models.SeverityWarning
	CategoryInfo    = models.SeverityInfo
)

// Notification is one toast-style message.
type Notification struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Details   []string  `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier accepts notifications. Publish must not block on delivery.
type Notifier interface {
	Publish(n Notification)
}

// New builds a notification with a fresh time-ordered id.
func New(category Category, source, message string, details ...string) Notification {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Notification{
		ID:        id.String(),
		Category:  category,
		Source:    source,
		Message:   message,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
}

func Success(source, message string, details ...string) Notification {
	return New(CategorySuccess, source, message, details...)
}

func Error(source, message string, details ...string) Notification {
	return New(CategoryError, source, message, details...)
}

func Warning(source, message string, details ...string) Notification {
	return New(CategoryWarning, source, message, details...)
}

func Info(source, message string, details ...string) Notification {
	return New(CategoryInfo, source, message, details...)
}

// Discard drops every notification.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Publish(Notification) {}
