package workflowhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/platform/httpx"
	"github.com/tradedesk/tradedesk/internal/shared"
	"github.com/tradedesk/tradedesk/internal/workflow"
)

// Service is the workflow contract used by the handler.
type Service interface {
	Create(ctx context.Context, doc documents.Record) (workflow.View, error)
	Get(ctx context.Context, kind documents.Kind, id string) (workflow.View, error)
	List(ctx context.Context, q workflow.ListQuery) ([]workflow.View, error)
	Delete(ctx context.Context, kind documents.Kind, id string) error
	Apply(ctx context.Context, kind documents.Kind, id string, action workflow.Action) (workflow.View, error)
	SetInquiryItemStatus(ctx context.Context, inquiryID string, index int, status documents.ItemStatus) (workflow.View, error)
	ConvertInquiryToQuotation(ctx context.Context, inquiryID string, input workflow.QuotationInput) (workflow.View, error)
	ConvertInquiryToPurchaseOrder(ctx context.Context, inquiryID string, input workflow.PurchaseOrderInput) (workflow.View, error)
	AcceptQuotation(ctx context.Context, quotationID string, input workflow.PurchaseOrderInput) (workflow.View, error)
	CreateSupplierOrder(ctx context.Context, poID string, input workflow.SupplierOrderInput) (workflow.View, error)
	ReceiveDelivery(ctx context.Context, supplierOrderID string, input workflow.DeliveryInput) (workflow.View, error)
}

// collections maps URL segments to document kinds.
var collections = map[string]documents.Kind{
	"purchase-orders":    documents.KindPurchaseOrder,
	"inquiries":          documents.KindInquiry,
	"quotations":         documents.KindQuotation,
	"supplier-orders":    documents.KindSupplierOrder,
	"delivery-documents": documents.KindDeliveryDocument,
}

// Handler serves the document workflow API.
type Handler struct {
	logger    *slog.Logger
	service   Service
	validator *validator.Validate
}

// NewHandler constructs the workflow HTTP handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: newValidator()}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return strings.ToLower(f.Name)
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// validate runs struct tags and reports failures as a *shared.ValidationError.
func (h *Handler) validate(subject string, req any) error {
	err := h.validator.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &shared.ValidationError{Subject: subject}
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		verr.Add(field, describeTag(fe))
	}
	return verr.Err()
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "min":
		return "at least " + fe.Param() + " required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "email":
		return "must be an email address"
	case "len":
		return "must be " + fe.Param() + " characters"
	default:
		return fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
	}
}

// decode reads and validates a request body.
func (h *Handler) decode(r *http.Request, subject string, req any) error {
	if err := httpx.DecodeJSON(r, req); err != nil {
		return err
	}
	return h.validate(subject, req)
}

func (h *Handler) kind(r *http.Request) (documents.Kind, error) {
	name := chi.URLParam(r, "collection")
	kind, ok := collections[name]
	if !ok {
		return "", fmt.Errorf("collection %q: %w", name, shared.ErrNotFound)
	}
	return kind, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	httpx.RespondErrorLogged(w, r, h.logger, msg, err)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	kind, err := h.kind(r)
	if err != nil {
		h.fail(w, r, "list documents", err)
		return
	}
	q := r.URL.Query()
	query := listQuery{Status: q.Get("status"), Number: q.Get("number"), Party: q.Get("party")}
	verr := &shared.ValidationError{Subject: "list"}
	query.Limit = intParam(q.Get("limit"), "limit", verr)
	query.Offset = intParam(q.Get("offset"), "offset", verr)
	if err := verr.Err(); err != nil {
		h.fail(w, r, "list documents", err)
		return
	}
	if err := h.validate("list", query); err != nil {
		h.fail(w, r, "list documents", err)
		return
	}

	views, err := h.service.List(r.Context(), workflow.ListQuery{
		Kind:         kind,
		Status:       documents.Status(query.Status),
		NumberPrefix: query.Number,
		Party:        query.Party,
		Limit:        query.Limit,
		Offset:       query.Offset,
	})
	if err != nil {
		h.fail(w, r, "list documents", err)
		return
	}
	if views == nil {
		views = []workflow.View{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": views, "count": len(views)})
}

func intParam(raw, field string, verr *shared.ValidationError) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		verr.Add(field, "must be an integer")
		return 0
	}
	return n
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	kind, err := h.kind(r)
	if err != nil {
		h.fail(w, r, "create document", err)
		return
	}
	var req interface{ toRecord() documents.Record }
	switch kind {
	case documents.KindPurchaseOrder:
		req = &purchaseOrderRequest{}
	case documents.KindInquiry:
		req = &inquiryRequest{}
	case documents.KindQuotation:
		req = &quotationRequest{}
	case documents.KindSupplierOrder:
		req = &supplierOrderRequest{}
	case documents.KindDeliveryDocument:
		req = &deliveryDocumentRequest{}
	}
	if err := h.decode(r, string(kind), req); err != nil {
		h.fail(w, r, "create document", err)
		return
	}
	view, err := h.service.Create(r.Context(), req.toRecord())
	if err != nil {
		h.fail(w, r, "create document", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, view)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	kind, err := h.kind(r)
	if err != nil {
		h.fail(w, r, "get document", err)
		return
	}
	view, err := h.service.Get(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	kind, err := h.kind(r)
	if err != nil {
		h.fail(w, r, "delete document", err)
		return
	}
	if err := h.service.Delete(r.Context(), kind, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	kind, err := h.kind(r)
	if err != nil {
		h.fail(w, r, "apply action", err)
		return
	}
	action := workflow.Action(chi.URLParam(r, "action"))
	view, err := h.service.Apply(r.Context(), kind, chi.URLParam(r, "id"), action)
	if err != nil {
		h.fail(w, r, "apply action", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleItemStatus(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		verr := &shared.ValidationError{Subject: "inquiry item"}
		verr.Add("index", "must be an integer")
		h.fail(w, r, "set item status", verr)
		return
	}
	var req itemStatusRequest
	if err := h.decode(r, "inquiry item", &req); err != nil {
		h.fail(w, r, "set item status", err)
		return
	}
	view, err := h.service.SetInquiryItemStatus(r.Context(), chi.URLParam(r, "id"), index, documents.ItemStatus(req.Status))
	if err != nil {
		h.fail(w, r, "set item status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleInquiryToQuotation(w http.ResponseWriter, r *http.Request) {
	var req convertQuotationRequest
	if err := h.decode(r, "quotation", &req); err != nil {
		h.fail(w, r, "convert inquiry", err)
		return
	}
	view, err := h.service.ConvertInquiryToQuotation(r.Context(), chi.URLParam(r, "id"), req.toInput())
	h.respondCreated(w, r, "convert inquiry", view, err)
}

func (h *Handler) handleInquiryToPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req convertPurchaseOrderRequest
	if err := h.decode(r, "purchase_order", &req); err != nil {
		h.fail(w, r, "convert inquiry", err)
		return
	}
	view, err := h.service.ConvertInquiryToPurchaseOrder(r.Context(), chi.URLParam(r, "id"), req.toInput())
	h.respondCreated(w, r, "convert inquiry", view, err)
}

func (h *Handler) handleAcceptQuotation(w http.ResponseWriter, r *http.Request) {
	var req convertPurchaseOrderRequest
	if err := h.decode(r, "purchase_order", &req); err != nil {
		h.fail(w, r, "accept quotation", err)
		return
	}
	view, err := h.service.AcceptQuotation(r.Context(), chi.URLParam(r, "id"), req.toInput())
	h.respondCreated(w, r, "accept quotation", view, err)
}

func (h *Handler) handleSupplierOrder(w http.ResponseWriter, r *http.Request) {
	var req placeSupplierOrderRequest
	if err := h.decode(r, "supplier_order", &req); err != nil {
		h.fail(w, r, "create supplier order", err)
		return
	}
	view, err := h.service.CreateSupplierOrder(r.Context(), chi.URLParam(r, "id"), req.toInput())
	h.respondCreated(w, r, "create supplier order", view, err)
}

func (h *Handler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	var req receiveDeliveryRequest
	if err := h.decode(r, "delivery_document", &req); err != nil {
		h.fail(w, r, "receive delivery", err)
		return
	}
	view, err := h.service.ReceiveDelivery(r.Context(), chi.URLParam(r, "id"), req.toInput())
	h.respondCreated(w, r, "receive delivery", view, err)
}

func (h *Handler) respondCreated(w http.ResponseWriter, r *http.Request, msg string, view workflow.View, err error) {
	if err != nil {
		h.fail(w, r, msg, err)
		return
	}
	h.logger.InfoContext(r.Context(), msg, slog.String("kind", string(view.Kind)), slog.String("id", view.ID), slog.String("number", view.Number))
	httpx.JSON(w, http.StatusCreated, view)
}
