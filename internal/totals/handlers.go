package totals

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/recurring-cart/internal/common"
)

// Handler exposes the cart and totals endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Mount registers the cart routes on the router.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/products", h.ListProducts)
	r.Post("/carts", h.CreateCart)
	r.Post("/carts/{cartID}/items", h.AddItem)
	r.Put("/carts/{cartID}/coupons", h.SetCoupons)
	r.Post("/carts/{cartID}/totals", h.Calculate)
	r.Get("/carts/{cartID}/recurring", h.Recurring)
	r.Get("/carts/{cartID}/renewals", h.RenewalOrders)
}

type createCartInput struct {
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

// CreateCart opens an empty cart.
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	var in createCartInput
	if r.ContentLength > 0 {
		if err := common.DecodeJSON(r, &in); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	if err := h.Validate.Struct(in); err != nil {
		common.WriteError(w, common.Invalid("invalid cart input", err.Error()))
		return
	}
	id, err := h.Svc.CreateCart(r.Context(), in.Currency)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"cartId": id}})
}

type addItemInput struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	Qty       int    `json:"qty" validate:"required,gt=0,lte=999"`
}

// AddItem adds a product to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var in addItemInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Validate.Struct(in); err != nil {
		common.WriteError(w, common.Invalid("invalid item input", err.Error()))
		return
	}
	productID, err := uuid.Parse(in.ProductID)
	if err != nil {
		common.WriteError(w, common.Invalid("invalid product id", nil))
		return
	}
	itemID, err := h.Svc.AddItem(r.Context(), cartID, productID, in.Qty)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"itemId": itemID}})
}

type setCouponsInput struct {
	Codes []string `json:"codes" validate:"required,max=10,dive,required,max=64"`
}

// SetCoupons replaces the coupon codes applied to the cart.
func (h *Handler) SetCoupons(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var in setCouponsInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Validate.Struct(in); err != nil {
		common.WriteError(w, common.Invalid("invalid coupon input", err.Error()))
		return
	}
	if err := h.Svc.SetCoupons(r.Context(), cartID, in.Codes); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"codes": in.Codes}})
}

// Calculate runs a full calculation cycle and returns every total the
// storefront needs in one response.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	out, err := h.Svc.Calculate(r.Context(), cartID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Recurring returns the recurring-cart projections for the cart.
func (h *Handler) Recurring(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	views, err := h.Svc.Recurring(r.Context(), cartID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

// RenewalOrders lists the cart's recorded renewal orders.
func (h *Handler) RenewalOrders(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	orders, err := h.Svc.RenewalOrders(r.Context(), cartID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orders})
}

type subscriptionView struct {
	Interval    int    `json:"interval"`
	Period      string `json:"period"`
	Length      int    `json:"length,omitempty"`
	TrialLength int    `json:"trialLength,omitempty"`
	TrialPeriod string `json:"trialPeriod,omitempty"`
	SyncDay     int    `json:"syncDay,omitempty"`
}

type productView struct {
	ID            uuid.UUID         `json:"id"`
	Title         string            `json:"title"`
	Price         int64             `json:"price"`
	SignUpFee     int64             `json:"signUpFee,omitempty"`
	NeedsShipping bool              `json:"needsShipping"`
	Subscription  *subscriptionView `json:"subscription,omitempty"`
}

// ListProducts returns a page of catalog products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	products, err := h.Svc.ListProducts(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	views := make([]productView, 0, len(products))
	for _, p := range products {
		v := productView{
			ID: p.ID, Title: p.Title, Price: p.Price,
			SignUpFee: p.SignUpFee, NeedsShipping: p.NeedsShipping,
		}
		if p.IsSubscription() {
			v.Subscription = &subscriptionView{
				Interval:    p.SubInterval,
				Period:      p.SubPeriod,
				Length:      p.SubLength,
				TrialLength: p.TrialLength,
				TrialPeriod: p.TrialPeriod,
				SyncDay:     p.SyncDay,
			}
		}
		views = append(views, v)
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": views,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(views)},
	})
}

func (h *Handler) cartID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "cartID"))
	if err != nil {
		common.WriteError(w, common.Invalid("invalid cart id", nil))
		return uuid.Nil, false
	}
	return id, true
}
