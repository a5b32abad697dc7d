package models

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Setting{},
		&Customer{},
		&Quotation{},
		&QuotationItem{},
		&QuotationTemplate{},
		&Notification{},
		&NotificationTemplate{},
		&NotificationRule{},
		&NotificationLog{},
		&ScheduledNotification{},
		&NotificationPreference{},
		&NotificationProvider{},
	}
}
