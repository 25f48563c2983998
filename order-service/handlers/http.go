package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cafeteria/ordering-system/order-service/application"
	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/cafeteria/ordering-system/shared/saga"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// OrderHandlers contains the order HTTP handlers
type OrderHandlers struct {
	createOrder    *application.CreateOrder
	getOrder       *application.GetOrder
	listOrders     *application.ListOrders
	getMenu        *application.GetMenu
	searchProducts *application.SearchProducts

	productRepository  domain.ProductRepository
	categoryRepository domain.CategoryRepository
}

// NewOrderHandlers creates new order handlers
func NewOrderHandlers(
	createOrder *application.CreateOrder,
	getOrder *application.GetOrder,
	listOrders *application.ListOrders,
	getMenu *application.GetMenu,
	searchProducts *application.SearchProducts,
	productRepository domain.ProductRepository,
	categoryRepository domain.CategoryRepository,
) *OrderHandlers {
	return &OrderHandlers{
		createOrder:        createOrder,
		getOrder:           getOrder,
		listOrders:         listOrders,
		getMenu:            getMenu,
		searchProducts:     searchProducts,
		productRepository:  productRepository,
		categoryRepository: categoryRepository,
	}
}

// sagaErrorResponse is the error body for a failed order creation. It
// carries the full saga execution trail so callers can see which steps
// ran and which were undone.
type sagaErrorResponse struct {
	Error string          `json:"error"`
	Saga  *saga.Execution `json:"saga,omitempty"`
}

// CreateOrder handles order creation requests
func (h *OrderHandlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var cmd application.CreateOrderCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	response, err := h.createOrder.Execute(r.Context(), &cmd)
	if err != nil {
		if response == nil || response.Saga == nil {
			// Command never reached the saga.
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		status := http.StatusInternalServerError
		if response.Saga.Status == saga.StatusCompensated {
			status = http.StatusConflict
		}

		writeJSON(w, status, &sagaErrorResponse{
			Error: err.Error(),
			Saga:  response.Saga,
		})
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

// GetOrder handles order retrieval requests
func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	response, err := h.getOrder.Execute(r.Context(), &application.GetOrderQuery{OrderID: orderID})
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// ListOrders handles order listing requests
func (h *OrderHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	responses, err := h.listOrders.Execute(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, responses)
}

// GetMenu handles menu requests, with optional price and calorie filters
func (h *OrderHandlers) GetMenu(w http.ResponseWriter, r *http.Request) {
	filter := &application.MenuFilter{}
	if v := r.URL.Query().Get("min_price"); v != "" {
		filter.MinPrice, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("max_price"); v != "" {
		filter.MaxPrice, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("max_calories"); v != "" {
		filter.MaxCalories, _ = strconv.Atoi(v)
	}

	sections, err := h.getMenu.Execute(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, sections)
}

// ListProducts handles catalog listing requests
func (h *OrderHandlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.productRepository.FindAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// GetProduct handles product retrieval requests
func (h *OrderHandlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := models.NewID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid product ID", http.StatusBadRequest)
		return
	}

	product, err := h.productRepository.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// SearchProducts handles product search requests
func (h *OrderHandlers) SearchProducts(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")

	products, err := h.searchProducts.Execute(r.Context(), term)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// ListCategories handles category listing requests
func (h *OrderHandlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryRepository.FindAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, categories)
}

// RegisterRoutes registers order routes
func (h *OrderHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
	})

	r.Get("/menu", h.GetMenu)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/search", h.SearchProducts)
		r.Get("/{id}", h.GetProduct)
	})

	r.Get("/categories", h.ListCategories)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
