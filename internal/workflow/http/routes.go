// Package workflowhttp exposes the document workflow as a JSON API.
package workflowhttp

import "github.com/go-chi/chi/v5"

// MountRoutes registers workflow endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Post("/inquiries/{id}/quotation", h.handleInquiryToQuotation)
	r.Post("/inquiries/{id}/purchase-order", h.handleInquiryToPurchaseOrder)
	r.Put("/inquiries/{id}/items/{index}/status", h.handleItemStatus)
	r.Post("/quotations/{id}/accept", h.handleAcceptQuotation)
	r.Post("/purchase-orders/{id}/supplier-orders", h.handleSupplierOrder)
	r.Post("/supplier-orders/{id}/delivery", h.handleDelivery)

	r.Get("/{collection}", h.handleList)
	r.Post("/{collection}", h.handleCreate)
	r.Get("/{collection}/{id}", h.handleGet)
	r.Delete("/{collection}/{id}", h.handleDelete)
	r.Post("/{collection}/{id}/actions/{action}", h.handleAction)
}
