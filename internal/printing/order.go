package printing

import (
	"time"

	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
)

// Order is the business event the orchestration layer prints.
type Order struct {
	OrderID       string            `json:"order_id"`
	OrderNumber   string            `json:"order_number,omitempty"`
	TenantID      string            `json:"tenant_id"`
	StoreID       string            `json:"store_id"`
	StoreName     string            `json:"store_name,omitempty"`
	StoreAddress  string            `json:"store_address,omitempty"`
	StorePhone    string            `json:"store_phone,omitempty"`
	TableNumber   string            `json:"table_number,omitempty"`
	OrderTime     time.Time         `json:"order_time"`
	Items         []domain.LineItem `json:"items"`
	Subtotal      float64           `json:"subtotal"`
	Tax           float64           `json:"tax,omitempty"`
	Discount      float64           `json:"discount,omitempty"`
	Total         float64           `json:"total"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	PaymentStatus string            `json:"payment_status,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	Priority      string            `json:"priority,omitempty"`
	Footer        string            `json:"footer,omitempty"`
	CreatedBy     string            `json:"created_by,omitempty"`
}

// Number is the printed order number, falling back to the order id.
func (o Order) Number() string {
	if o.OrderNumber != "" {
		return o.OrderNumber
	}
	return o.OrderID
}

// Receipt maps the order onto customer receipt content.
func (o Order) Receipt() domain.Receipt {
	subtotal := o.Subtotal
	if subtotal == 0 {
		for _, item := range o.Items {
			subtotal += item.LineTotal()
		}
	}

	return domain.Receipt{
		StoreName:     o.StoreName,
		StoreAddress:  o.StoreAddress,
		StorePhone:    o.StorePhone,
		OrderNumber:   o.Number(),
		OrderTime:     o.OrderTime,
		TableNumber:   o.TableNumber,
		Items:         o.Items,
		Subtotal:      subtotal,
		Tax:           o.Tax,
		Discount:      o.Discount,
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		Footer:        o.Footer,
	}
}

// Ticket maps the order onto kitchen slip content.
func (o Order) Ticket() domain.OrderTicket {
	return domain.OrderTicket{
		OrderNumber: o.Number(),
		OrderTime:   o.OrderTime,
		TableNumber: o.TableNumber,
		Items:       o.Items,
		Notes:       o.Notes,
		Priority:    o.Priority,
	}
}
