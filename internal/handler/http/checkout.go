package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/posledger/internal/domain"
	"github.com/utafrali/posledger/internal/receipt"
	"github.com/utafrali/posledger/internal/service"
	"github.com/utafrali/posledger/pkg/httputil"
	"github.com/utafrali/posledger/pkg/validator"
)

// CheckoutHandler handles the commit of the cart as a sale.
type CheckoutHandler struct {
	submitter *service.SaleSubmitter
	receipts  *service.ReceiptService
	width     int
	logger    *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(submitter *service.SaleSubmitter, receipts *service.ReceiptService, width int, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		submitter: submitter,
		receipts:  receipts,
		width:     width,
		logger:    logger,
	}
}

// CheckoutRequest is the JSON request body for committing the cart.
type CheckoutRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required"`
	Print         bool   `json:"print"`
}

// CheckoutResponse is a committed sale with its rendered receipt. A failed
// print does not undo the sale; it is reported in PrintError.
type CheckoutResponse struct {
	Sale       domain.Sale      `json:"sale"`
	Receipt    receipt.Receipt  `json:"receipt"`
	Document   receipt.Document `json:"document"`
	Text       string           `json:"text"`
	Printed    bool             `json:"printed"`
	PrintError string           `json:"print_error,omitempty"`
}

// Checkout handles POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	res, err := h.submitter.Commit(r.Context(), method)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	doc := h.receipts.Document(res.Sale)
	out := CheckoutResponse{
		Sale:     res.Sale,
		Receipt:  res.Receipt,
		Document: doc,
		Text:     doc.Text(h.width),
	}
	if req.Print {
		if err := h.receipts.PrintDocument(r.Context(), doc); err != nil {
			out.PrintError = err.Error()
		} else {
			out.Printed = true
		}
	}

	httputil.WriteData(w, http.StatusCreated, out)
}

// State handles GET /api/v1/checkout/state
func (h *CheckoutHandler) State(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteData(w, http.StatusOK, map[string]service.SubmitState{"state": h.submitter.State()})
}
