package model

import "time"

// MonitorState is the durable record kept for one monitored product
type MonitorState struct {
	LastSeenQuantity *int  `json:"last_seen_quantity"`
	LastSeenInStock  *bool `json:"last_seen_in_stock"`

	LastNotifiedQuantity *int  `json:"last_notified_quantity"`
	LastNotifiedInStock  *bool `json:"last_notified_in_stock"`

	LastNotificationKey  *string    `json:"last_notification_key"`
	LastNotificationTime *time.Time `json:"last_notification_time"`
}

// IsEmpty reports whether nothing has ever been recorded
func (s MonitorState) IsEmpty() bool {
	return s.LastSeenQuantity == nil && s.LastSeenInStock == nil &&
		!s.HasNotified() &&
		s.LastNotificationKey == nil && s.LastNotificationTime == nil
}

// HasNotified reports whether any notification value was ever recorded
func (s MonitorState) HasNotified() bool {
	return s.LastNotifiedQuantity != nil || s.LastNotifiedInStock != nil
}

// Clone returns a deep copy so callers can mutate without aliasing
func (s MonitorState) Clone() MonitorState {
	out := MonitorState{}
	if s.LastSeenQuantity != nil {
		out.LastSeenQuantity = IntPtr(*s.LastSeenQuantity)
	}
	if s.LastSeenInStock != nil {
		out.LastSeenInStock = BoolPtr(*s.LastSeenInStock)
	}
	if s.LastNotifiedQuantity != nil {
		out.LastNotifiedQuantity = IntPtr(*s.LastNotifiedQuantity)
	}
	if s.LastNotifiedInStock != nil {
		out.LastNotifiedInStock = BoolPtr(*s.LastNotifiedInStock)
	}
	if s.LastNotificationKey != nil {
		k := *s.LastNotificationKey
		out.LastNotificationKey = &k
	}
	if s.LastNotificationTime != nil {
		t := *s.LastNotificationTime
		out.LastNotificationTime = &t
	}
	return out
}
