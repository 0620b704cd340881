package model

import "time"

// NotificationKind classifies a detected change
type NotificationKind string

const (
	KindQuantityObserved   NotificationKind = "QuantityObserved"
	KindQuantityUpdated    NotificationKind = "QuantityUpdated"
	KindBackInStock        NotificationKind = "BackInStock"
	KindOutOfStock         NotificationKind = "OutOfStock"
	KindInitialObservation NotificationKind = "InitialObservation"
)

// Title is the human readable headline for the kind
func (k NotificationKind) Title() string {
	switch k {
	case KindQuantityObserved:
		return "Quantity Observed"
	case KindQuantityUpdated:
		return "Quantity Updated"
	case KindBackInStock:
		return "Product Back in Stock"
	case KindOutOfStock:
		return "Product Out of Stock"
	case KindInitialObservation:
		return "Initial Observation"
	}
	return string(k)
}

// NotificationEvent is what gets rendered and delivered for one fired change
type NotificationEvent struct {
	Kind             NotificationKind `json:"kind"`
	Product          Product          `json:"product"`
	PreviousQuantity *int             `json:"previous_quantity"`
	NewQuantity      *int             `json:"new_quantity"`
	InStock          bool             `json:"in_stock"`
	ObservedAt       time.Time        `json:"observed_at"`
}

// Delivery statuses
const (
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliverySkipped = "skipped"
)

// Delivery is the outcome of one channel for one event
type Delivery struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// NotificationRecord is a fired notification kept in history
type NotificationRecord struct {
	ID               string           `json:"id"`
	ProductKey       string           `json:"product_key"`
	ProductURL       string           `json:"product_url"`
	Kind             NotificationKind `json:"kind"`
	PreviousQuantity *int             `json:"previous_quantity"`
	NewQuantity      *int             `json:"new_quantity"`
	InStock          bool             `json:"in_stock"`
	Subject          string           `json:"subject"`
	Deliveries       []Delivery       `json:"deliveries"`
	CreatedAt        time.Time        `json:"created_at"`
}

// CycleStatus summarises the most recent poll cycle of a product
type CycleStatus struct {
	ProductKey  string           `json:"product_key"`
	ProductURL  string           `json:"product_url"`
	LastCycleAt time.Time        `json:"last_cycle_at"`
	Duration    int64            `json:"duration_ms"`
	Observation Observation      `json:"observation"`
	Kind        NotificationKind `json:"kind,omitempty"`
	Fired       bool             `json:"fired"`
	Suppressed  bool             `json:"suppressed"`
	Deliveries  []Delivery       `json:"deliveries,omitempty"`
	Error       string           `json:"error,omitempty"`
}
