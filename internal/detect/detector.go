// Package detect decides whether a new observation is worth a notification.
//
// Everything here is a pure function of its inputs: the current time is a
// parameter and nothing is read from the environment.
package detect

import (
	"fmt"
	"strings"
	"time"

	"stock-watch/internal/model"
)

// QuantityPolicy controls which quantity movements notify
type QuantityPolicy string

const (
	// QuantityAny notifies on any change of a known quantity
	QuantityAny QuantityPolicy = "any"
	// QuantityIncrease notifies only when the quantity rises above the last seen value
	QuantityIncrease QuantityPolicy = "increase"
)

// ParseQuantityPolicy maps a config string to a policy
func ParseQuantityPolicy(s string) (QuantityPolicy, error) {
	switch QuantityPolicy(s) {
	case "", QuantityAny:
		return QuantityAny, nil
	case QuantityIncrease:
		return QuantityIncrease, nil
	}
	return "", fmt.Errorf("unknown quantity policy %q", s)
}

// Policy holds the knobs the decision table depends on
type Policy struct {
	DedupWindow time.Duration
	Quantity    QuantityPolicy
}

// Decision is the outcome of evaluating one observation
type Decision struct {
	Kind       model.NotificationKind `json:"kind,omitempty"`
	Key        string                 `json:"key,omitempty"`
	Notify     bool                   `json:"notify"`
	Suppressed bool                   `json:"suppressed"`
}

// Classify runs the decision table and returns the matching kind, or ""
// when nothing is notifiable. Rows are evaluated in priority order.
func Classify(obs model.Observation, st model.MonitorState, policy Policy) model.NotificationKind {
	obs = obs.Normalize()
	if !obs.Known() {
		return ""
	}
	q, s := obs.Quantity, obs.InStock

	if (q != nil && *q == 0) || (s != nil && !*s) {
		return model.KindOutOfStock
	}

	notifiedInStock := st.LastNotifiedInStock != nil && *st.LastNotifiedInStock
	if s != nil && *s && !notifiedInStock {
		// first-ever known reading is an observation, not a restock
		if !st.HasNotified() && q != nil {
			return model.KindQuantityObserved
		}
		return model.KindBackInStock
	}

	if q != nil {
		if st.LastNotifiedQuantity == nil {
			return model.KindQuantityObserved
		}
		if *q != *st.LastNotifiedQuantity {
			if policy.Quantity == QuantityIncrease && !increased(*q, st) {
				return ""
			}
			return model.KindQuantityUpdated
		}
	}

	return ""
}

func increased(q int, st model.MonitorState) bool {
	if st.LastSeenQuantity == nil {
		return q > *st.LastNotifiedQuantity
	}
	return q > *st.LastSeenQuantity
}

// Decide classifies obs against st and applies the dedup window.
// An OutOfStock reading for a product whose last alert already said out of
// stock keeps its kind but does not notify.
func Decide(obs model.Observation, st model.MonitorState, policy Policy, now time.Time) Decision {
	obs = obs.Normalize()
	kind := Classify(obs, st, policy)
	if kind == "" {
		return Decision{}
	}

	d := Decision{
		Kind:   kind,
		Key:    Key(kind, obs.Quantity, obs.InStock),
		Notify: true,
	}
	if kind == model.KindOutOfStock && notifiedOutOfStock(st) {
		d.Notify = false
		return d
	}
	if st.LastNotificationKey != nil && *st.LastNotificationKey == d.Key &&
		st.LastNotificationTime != nil && now.Sub(*st.LastNotificationTime) < policy.DedupWindow {
		d.Notify = false
		d.Suppressed = true
	}
	return d
}

// notifiedOutOfStock reports whether the last alert, or the last notified
// values, already described a depleted product
func notifiedOutOfStock(st model.MonitorState) bool {
	if st.LastNotificationKey != nil && strings.HasPrefix(*st.LastNotificationKey, string(model.KindOutOfStock)+"|") {
		return true
	}
	if st.LastNotifiedQuantity != nil && *st.LastNotifiedQuantity > 0 {
		return false
	}
	return st.LastNotifiedInStock != nil && !*st.LastNotifiedInStock
}

// Initial produces the unconditional first-boot decision for a known observation
func Initial(obs model.Observation) Decision {
	obs = obs.Normalize()
	if !obs.Known() {
		return Decision{}
	}
	return Decision{
		Kind:   model.KindInitialObservation,
		Key:    Key(model.KindInitialObservation, obs.Quantity, obs.InStock),
		Notify: true,
	}
}

// Key is the dedup identity of a notification
func Key(kind model.NotificationKind, quantity *int, inStock *bool) string {
	return fmt.Sprintf("%s|%s|%s", kind, model.FormatQuantity(quantity), model.FormatBool(inStock))
}

// Apply returns the state after obs was seen and d was acted upon.
// Unknown fields never overwrite known ones.
func Apply(st model.MonitorState, obs model.Observation, d Decision, now time.Time) model.MonitorState {
	out := st.Clone()
	obs = obs.Normalize()
	if !obs.Known() {
		return out
	}

	if obs.Quantity != nil {
		out.LastSeenQuantity = model.IntPtr(*obs.Quantity)
	}
	if obs.InStock != nil {
		out.LastSeenInStock = model.BoolPtr(*obs.InStock)
	}

	if d.Notify {
		if obs.Quantity != nil {
			out.LastNotifiedQuantity = model.IntPtr(*obs.Quantity)
		}
		if obs.InStock != nil {
			out.LastNotifiedInStock = model.BoolPtr(*obs.InStock)
		}
		key := d.Key
		at := now.UTC()
		out.LastNotificationKey = &key
		out.LastNotificationTime = &at
	}
	return out
}

// Event builds the deliverable event for a firing decision
func Event(product model.Product, st model.MonitorState, obs model.Observation, d Decision, now time.Time) model.NotificationEvent {
	obs = obs.Normalize()
	ev := model.NotificationEvent{
		Kind:       d.Kind,
		Product:    product,
		InStock:    obs.Available(),
		ObservedAt: now,
	}
	if st.LastNotifiedQuantity != nil {
		ev.PreviousQuantity = model.IntPtr(*st.LastNotifiedQuantity)
	}
	if obs.Quantity != nil {
		ev.NewQuantity = model.IntPtr(*obs.Quantity)
	}
	return ev
}
