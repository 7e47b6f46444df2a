package dto

import "github.com/cuongbtq/cloudprint/internal/printing"

// PrintOrderRequest asks for an order's receipt and kitchen slip. Both targets
// default to true when omitted.
type PrintOrderRequest struct {
	Order        printing.Order `json:"order"`
	PrintReceipt *bool          `json:"print_receipt"`
	PrintKitchen *bool          `json:"print_kitchen"`
	Language     string         `json:"language"`
}

type PrintOrderResponse struct {
	OrderID string `json:"order_id"`
	printing.Result
}
