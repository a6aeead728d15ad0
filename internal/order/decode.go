package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// wireItem uses pointers so missing fields can be told apart from zero values.
type wireItem struct {
	ID        json.RawMessage  `json:"id"`
	Code      string           `json:"code"`
	Name      string           `json:"name"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Qty       *int             `json:"qty"`
	LineTotal *decimal.Decimal `json:"line_total"`
}

type wireOrder struct {
	Items    *[]wireItem      `json:"items"`
	Subtotal *decimal.Decimal `json:"subtotal"`
	GST      *decimal.Decimal `json:"gst"`
	Total    *decimal.Decimal `json:"total"`
}

// DecodeID accepts an identifier encoded as a JSON string or number.
func DecodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("%w: missing id", ErrMalformedResponse)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: id: %v", ErrMalformedResponse, err)
		}
		if s == "" {
			return "", fmt.Errorf("%w: empty id", ErrMalformedResponse)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("%w: id: %v", ErrMalformedResponse, err)
	}
	return n.String(), nil
}

func (w wireItem) toItem(i int) (Item, error) {
	id, err := DecodeID(w.ID)
	if err != nil {
		return Item{}, fmt.Errorf("items[%d]: %w", i, err)
	}
	if w.Qty == nil {
		return Item{}, fmt.Errorf("%w: items[%d]: missing qty", ErrMalformedResponse, i)
	}
	it := Item{ID: id, Code: w.Code, Name: w.Name, Qty: *w.Qty}
	if w.UnitPrice != nil {
		it.UnitPrice = *w.UnitPrice
	}
	if w.LineTotal != nil {
		it.LineTotal = *w.LineTotal
	} else {
		it.LineTotal = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty)))
	}
	return it, nil
}

func (w wireOrder) toOrder() (Order, error) {
	switch {
	case w.Items == nil:
		return Order{}, fmt.Errorf("%w: missing items", ErrMalformedResponse)
	case w.Subtotal == nil:
		return Order{}, fmt.Errorf("%w: missing subtotal", ErrMalformedResponse)
	case w.GST == nil:
		return Order{}, fmt.Errorf("%w: missing gst", ErrMalformedResponse)
	case w.Total == nil:
		return Order{}, fmt.Errorf("%w: missing total", ErrMalformedResponse)
	}
	o := Order{
		Items:    make([]Item, 0, len(*w.Items)),
		Subtotal: *w.Subtotal,
		GST:      *w.GST,
		Total:    *w.Total,
	}
	for i, wi := range *w.Items {
		it, err := wi.toItem(i)
		if err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, nil
}

// DecodeOrder reads a current-order response.
func DecodeOrder(r io.Reader) (Order, error) {
	var w wireOrder
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return w.toOrder()
}

// DecodeConfirmation reads a commit response. A body carrying {"error"}
// instead of an order id is reported as an APIError with status 0.
func DecodeConfirmation(r io.Reader) (Confirmation, error) {
	var w struct {
		OrderID json.RawMessage `json:"order_id"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return Confirmation{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if w.Error != "" {
		return Confirmation{}, &APIError{Op: "commit", Message: w.Error}
	}
	id, err := DecodeID(w.OrderID)
	if err != nil {
		return Confirmation{}, fmt.Errorf("order_id: %w", err)
	}
	return Confirmation{OrderID: id}, nil
}

// DecodeSummary reads a sales summary response.
func DecodeSummary(r io.Reader) (Summary, error) {
	var s Summary
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if s.Counts == nil {
		s.Counts = map[string]int{}
	}
	return s, nil
}

type wirePlaced struct {
	ID        json.RawMessage `json:"id"`
	Timestamp string          `json:"timestamp"`
	wireOrder
}

// DecodeOrders reads an orders-list response: {"orders": [...]} or a bare array.
func DecodeOrders(r io.Reader) ([]PlacedOrder, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	var list []wirePlaced
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &list)
	} else {
		var env struct {
			Orders []wirePlaced `json:"orders"`
		}
		err = json.Unmarshal(trimmed, &env)
		list = env.Orders
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	out := make([]PlacedOrder, 0, len(list))
	for i, w := range list {
		idStr, err := DecodeID(w.ID)
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: orders[%d]: id %q is not an integer", ErrMalformedResponse, i, idStr)
		}
		ts, err := parseTimestamp(w.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: orders[%d]: %v", ErrMalformedResponse, i, err)
		}
		o, err := w.toOrder()
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		out = append(out, PlacedOrder{ID: id, Timestamp: ts, Order: o})
	}
	return out, nil
}

// parseTimestamp accepts RFC 3339 and the naive ISO form without a zone,
// which is read as UTC.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05.999999999", strings.TrimSuffix(s, "Z"))
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// DecodeDailySummary reads a daily summary response: {"days": [...]} or a bare array.
func DecodeDailySummary(r io.Reader) ([]DailySummary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read daily summary: %w", err)
	}
	var days []DailySummary
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &days)
	} else {
		var env struct {
			Days []DailySummary `json:"days"`
		}
		err = json.Unmarshal(trimmed, &env)
		days = env.Days
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if days == nil {
		days = []DailySummary{}
	}
	return days, nil
}
