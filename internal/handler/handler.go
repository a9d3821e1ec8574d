// Package handler содержит HTTP-обработчики API сервиса фудкорт.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/foodcourt-system/internal/middleware"
	"github.com/mmeshcher/foodcourt-system/internal/model"
	"github.com/mmeshcher/foodcourt-system/internal/repository"
	"github.com/mmeshcher/foodcourt-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, username, email, password, role string) (int64, error)
	AuthenticateUser(ctx context.Context, username, password string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID int64, mobileNumber, address string) error
	ListUsers(ctx context.Context) ([]model.User, error)
	ListMenu(ctx context.Context) ([]model.FoodItem, error)
	AddMenuItem(ctx context.Context, name, price string) (*model.FoodItem, error)
	AddToCart(ctx context.Context, userID, foodID int64, quantity int) error
	ViewCart(ctx context.Context, userID int64) ([]model.CartLine, []int64, error)
	Checkout(ctx context.Context, userID int64) (*model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
}

// Handler реализует HTTP-обработчики API сервиса фудкорт.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	_, err := h.service.RegisterUser(r.Context(), req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrUserExists):
			h.writeError(w, http.StatusConflict, "username or email already taken")
		default:
			h.logger.Error("register user error", zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}
		return
	}

	h.writeJSON(w, http.StatusOK, messageResponse{Message: "account created successfully"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и устанавливает cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID, u.Role)
	h.writeJSON(w, http.StatusOK, messageResponse{Message: "logged in as " + u.Username})
}

// Logout сбрасывает cookie сессии. Работает и для анонимных запросов.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	h.writeJSON(w, http.StatusOK, messageResponse{Message: "logged out successfully"})
}

type userResponse struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	MobileNumber string `json:"mobile_number,omitempty"`
	Address      string `json:"address,omitempty"`
}

type foodResponse struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type adminDashboardResponse struct {
	Users []userResponse `json:"users"`
	Menu  []foodResponse `json:"menu"`
}

// AdminDashboard возвращает список пользователей и меню. Только для администраторов.
func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	menu, err := h.service.ListMenu(r.Context())
	if err != nil {
		h.logger.Error("list menu error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	resp := adminDashboardResponse{
		Users: make([]userResponse, 0, len(users)),
		Menu:  make([]foodResponse, 0, len(menu)),
	}
	for _, u := range users {
		resp.Users = append(resp.Users, userResponse{
			ID:           u.ID,
			Username:     u.Username,
			Email:        u.Email,
			Role:         string(u.Role),
			MobileNumber: u.MobileNumber,
			Address:      u.Address,
		})
	}
	for _, f := range menu {
		resp.Menu = append(resp.Menu, foodResponse{
			ID:    f.ID,
			Name:  f.Name,
			Price: model.CentsToFloat(f.Price),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// AddMenuItem добавляет позицию меню из полей формы name и price. Только для администраторов.
func (h *Handler) AddMenuItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	item, err := h.service.AddMenuItem(r.Context(), r.FormValue("name"), r.FormValue("price"))
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("add menu item error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	h.writeJSON(w, http.StatusOK, foodResponse{
		ID:    item.ID,
		Name:  item.Name,
		Price: model.CentsToFloat(item.Price),
	})
}

// UpdateProfile перезаписывает контактные данные текущего пользователя
// из полей формы mobile_number и address.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	if err := r.ParseForm(); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	err := h.service.UpdateProfile(r.Context(), session.UserID, r.FormValue("mobile_number"), r.FormValue("address"))
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("update profile error", zap.Error(err), zap.Int64("userID", session.UserID))
		h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	h.writeJSON(w, http.StatusOK, messageResponse{Message: "profile updated successfully"})
}

// GetMenu возвращает все позиции меню.
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.service.ListMenu(r.Context())
	if err != nil {
		h.logger.Error("get menu error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	resp := make([]foodResponse, 0, len(menu))
	for _, f := range menu {
		resp = append(resp, foodResponse{
			ID:    f.ID,
			Name:  f.Name,
			Price: model.CentsToFloat(f.Price),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type cartAddRequest struct {
	FoodID   int64 `json:"food_id"`
	Quantity int   `json:"quantity,omitempty"`
}

// AddToCart добавляет позицию меню в корзину текущего пользователя.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	var req cartAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.service.AddToCart(r.Context(), session.UserID, req.FoodID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrFoodNotFound):
			h.writeError(w, http.StatusNotFound, "food item not found")
		default:
			h.logger.Error("add to cart error", zap.Error(err), zap.Int64("userID", session.UserID))
			h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}
		return
	}

	h.writeJSON(w, http.StatusOK, messageResponse{Message: "item added to cart"})
}

type cartLineResponse struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// ViewCart возвращает строки корзины текущего пользователя с названиями и ценами из меню.
func (h *Handler) ViewCart(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	lines, orphans, err := h.service.ViewCart(r.Context(), session.UserID)
	if err != nil {
		h.logger.Error("view cart error", zap.Error(err), zap.Int64("userID", session.UserID))
		h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	if len(orphans) > 0 {
		h.logger.Warn("cart references missing food items",
			zap.Int64("userID", session.UserID),
			zap.Int64s("foodIDs", orphans),
		)
	}

	resp := make([]cartLineResponse, 0, len(lines))
	for _, l := range lines {
		resp = append(resp, cartLineResponse{
			Name:     l.Name,
			Price:    model.CentsToFloat(l.Price),
			Quantity: l.Quantity,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type checkoutResponse struct {
	Message string  `json:"message"`
	OrderID int64   `json:"order_id"`
	Total   float64 `json:"total"`
}

// Checkout оформляет заказ по корзине текущего пользователя.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	order, err := h.service.Checkout(r.Context(), session.UserID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmptyCart):
			h.writeError(w, http.StatusUnprocessableEntity, "cart is empty")
		case errors.Is(err, repository.ErrCartInconsistent):
			h.logger.Warn("checkout on inconsistent cart", zap.Error(err), zap.Int64("userID", session.UserID))
			h.writeError(w, http.StatusConflict, "cart references a missing food item")
		default:
			h.logger.Error("checkout error", zap.Error(err), zap.Int64("userID", session.UserID))
			h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}
		return
	}

	h.writeJSON(w, http.StatusOK, checkoutResponse{
		Message: "order placed",
		OrderID: order.ID,
		Total:   model.CentsToFloat(order.Total),
	})
}

type orderItemResponse struct {
	FoodID   int64 `json:"food_id"`
	Quantity int   `json:"quantity"`
}

type orderResponse struct {
	ID        int64               `json:"id"`
	UserID    int64               `json:"user_id"`
	Items     []orderItemResponse `json:"items"`
	Total     float64             `json:"total"`
	CreatedAt string              `json:"created_at"`
}

// ListOrders возвращает историю всех оформленных заказов. Только для администраторов.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		h.logger.Error("list orders error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		items := make([]orderItemResponse, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, orderItemResponse{FoodID: it.FoodID, Quantity: it.Quantity})
		}
		resp = append(resp, orderResponse{
			ID:        o.ID,
			UserID:    o.UserID,
			Items:     items,
			Total:     model.CentsToFloat(o.Total),
			CreatedAt: o.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}
