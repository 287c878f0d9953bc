package model

import (
	"strings"
	"time"
)

type NotificationType string

const (
	NotificationInfo    NotificationType = "INFO"
	NotificationWarning NotificationType = "WARNING"
	NotificationError   NotificationType = "ERROR"
	NotificationSuccess NotificationType = "SUCCESS"
	NotificationAlert   NotificationType = "ALERT"
)

type NotificationCategory string

const (
	CategorySystem      NotificationCategory = "SYSTEM"
	CategorySecurity    NotificationCategory = "SECURITY"
	CategoryAttack      NotificationCategory = "ATTACK"
	CategoryPerformance NotificationCategory = "PERFORMANCE"
)

// Priorities: 1 low, 2 medium, 3 high, 4 critical.
const (
	PriorityLow      = 1
	PriorityMedium   = 2
	PriorityHigh     = 3
	PriorityCritical = 4
)

// Notification is an operational event raised by the capture engine.
type Notification struct {
	ID            string               `gorm:"primaryKey" json:"id"`
	Timestamp     time.Time            `gorm:"index" json:"timestamp"`
	Type          NotificationType     `gorm:"index" json:"type"`
	Category      NotificationCategory `gorm:"index" json:"category"`
	Title         string               `json:"title"`
	Message       string               `json:"message"`
	Details       string               `json:"details,omitempty"`
	Read          bool                 `gorm:"index" json:"read"`
	SourceAddress string               `gorm:"index" json:"source_address,omitempty"`
	Protocol      Protocol             `json:"protocol,omitempty"`
	Username      string               `json:"username,omitempty"`
	Priority      int                  `json:"priority"`
	Actionable    bool                 `json:"actionable"`
}

func (Notification) TableName() string {
	return "notifications"
}

func NewNotification(t NotificationType, category NotificationCategory, title, message string) Notification {
	return Notification{
		Timestamp: time.Now().UTC(),
		Type:      t,
		Category:  category,
		Title:     title,
		Message:   message,
		Priority:  PriorityFor(t),
	}
}

func NewSystemNotification(t NotificationType, title, message string) Notification {
	return NewNotification(t, CategorySystem, title, message)
}

// NewAttackNotification builds an actionable ATTACK notification correlated
// with a source address and protocol. username may be empty.
func NewAttackNotification(t NotificationType, title, message, sourceAddress string, protocol Protocol, username string) Notification {
	n := NewNotification(t, CategoryAttack, title, message)
	n.SourceAddress = sourceAddress
	n.Protocol = protocol
	n.Username = username
	n.Actionable = true
	return n
}

func PriorityFor(t NotificationType) int {
	switch NotificationType(strings.ToUpper(string(t))) {
	case NotificationError, NotificationAlert:
		return PriorityCritical
	case NotificationWarning:
		return PriorityHigh
	case NotificationSuccess:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

func (n Notification) IsHighPriority() bool {
	return n.Priority >= PriorityHigh
}

func (n Notification) IsCritical() bool {
	return n.Priority == PriorityCritical
}
