package entity

import (
	"encoding/json"
	"reflect"
	"strings"
)

// ValueDesc is the catalog's {value, desc} pair used for codes.
type ValueDesc struct {
	Value string `json:"value"`
	Desc  string `json:"desc,omitempty"`
}

// Barcode is an item barcode as sent in a webhook. Numeric barcodes are
// kept as their literal digits.
type Barcode string

// UnmarshalJSON accepts a JSON string, number or null. Any other value
// reports a *json.UnmarshalTypeError.
func (b *Barcode) UnmarshalJSON(data []byte) error {
	switch {
	case len(data) == 0:
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = Barcode(s)
	case data[0] == 'n':
		*b = ""
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		*b = Barcode(json.Number(data).String())
	default:
		return &json.UnmarshalTypeError{
			Value: jsonKind(data[0]),
			Type:  reflect.TypeOf(""),
			Field: "barcode",
		}
	}
	return nil
}

func jsonKind(first byte) string {
	switch first {
	case '{':
		return "object"
	case '[':
		return "array"
	default:
		return "bool"
	}
}

// ItemData holds the item-level fields of a webhook payload.
type ItemData struct {
	Barcode Barcode `json:"barcode"`
	PID     string `json:"pid,omitempty"`
}

// WebhookItem is the catalog's native item envelope.
type WebhookItem struct {
	ItemData *ItemData `json:"item_data"`
}

// WebhookEvent is the inbound webhook payload. Only the fields the relay
// reads are decoded; everything else is ignored.
type WebhookEvent struct {
	ID          string       `json:"id,omitempty"`
	Action      string       `json:"action,omitempty"`
	Event       *ValueDesc   `json:"event,omitempty"`
	Institution *ValueDesc   `json:"institution,omitempty"`
	ItemData    *ItemData    `json:"item_data,omitempty"`
	Item        *WebhookItem `json:"item,omitempty"`
}

// Barcode returns the item barcode from item_data.barcode, falling back to
// item.item_data.barcode. Empty when neither is present.
func (e *WebhookEvent) Barcode() string {
	if e.ItemData != nil {
		if b := strings.TrimSpace(string(e.ItemData.Barcode)); b != "" {
			return b
		}
	}
	if e.Item != nil && e.Item.ItemData != nil {
		return strings.TrimSpace(string(e.Item.ItemData.Barcode))
	}
	return ""
}

// EventType returns event.value, or empty.
func (e *WebhookEvent) EventType() string {
	if e.Event == nil {
		return ""
	}
	return e.Event.Value
}
