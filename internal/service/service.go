// Package service реализует бизнес-логику сервиса фудкорт.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/foodcourt-system/internal/model"
	"github.com/mmeshcher/foodcourt-system/internal/repository"
	"github.com/mmeshcher/foodcourt-system/internal/validation"
)

// ErrValidation возвращается при некорректных входных данных, исправимых пользователем.
var (
	ErrValidation = errors.New("validation error")
	// ErrInvalidCredentials возвращается при неудачной аутентификации. Не раскрывает,
	// что именно неверно: логин или пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, username, email string, passwordHash []byte, role model.Role) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUserContact(ctx context.Context, userID int64, mobileNumber, address string) error
	CreateFood(ctx context.Context, name string, price int64) (*model.FoodItem, error)
	ListFood(ctx context.Context) ([]model.FoodItem, error)
	AddCartItem(ctx context.Context, userID, foodID int64, quantity int) error
	GetCartLines(ctx context.Context, userID int64) ([]model.CartLine, []int64, error)
	ClearCart(ctx context.Context, userID int64) error
	Checkout(ctx context.Context, userID int64) (*model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
}

// Service содержит бизнес-логику сервиса фудкорт.
type Service struct {
	repo Repository
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя. Пароль хранится только в виде
// bcrypt-хеша. Роль по умолчанию — customer.
func (s *Service) RegisterUser(ctx context.Context, username, email, password, role string) (int64, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" || password == "" {
		return 0, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	if !validation.IsValidEmail(email) {
		return 0, fmt.Errorf("%w: invalid email", ErrValidation)
	}

	parsedRole, err := model.ParseRole(role)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, username, email, hash, parsedRole)
	if err != nil {
		return 0, err
	}

	return id, nil
}

// AuthenticateUser проверяет логин и пароль и возвращает пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// UpdateProfile перезаписывает контактные данные пользователя. Оба поля обязательны.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, mobileNumber, address string) error {
	mobileNumber = strings.TrimSpace(mobileNumber)
	address = strings.TrimSpace(address)

	if mobileNumber == "" || address == "" {
		return fmt.Errorf("%w: mobile number and address are required", ErrValidation)
	}
	if !validation.IsValidMobileNumber(mobileNumber) {
		return fmt.Errorf("%w: invalid mobile number", ErrValidation)
	}

	return s.repo.UpdateUserContact(ctx, userID, mobileNumber, address)
}

// ListUsers возвращает всех зарегистрированных пользователей.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.ListUsers(ctx)
}

// ListMenu возвращает все позиции меню.
func (s *Service) ListMenu(ctx context.Context) ([]model.FoodItem, error) {
	return s.repo.ListFood(ctx)
}

// AddMenuItem добавляет позицию меню. Цена принимается строкой из формы и
// должна быть неотрицательным числом не точнее цента.
func (s *Service) AddMenuItem(ctx context.Context, name, price string) (*model.FoodItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}

	cents, err := parsePriceCents(price)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	return s.repo.CreateFood(ctx, name, cents)
}

func parsePriceCents(price string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		return 0, errors.New("price must be a number")
	}
	if d.IsNegative() {
		return 0, errors.New("price must be non-negative")
	}

	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, errors.New("price must not be more precise than a cent")
	}
	// IntPart молча обрезает значения, не влезающие в int64.
	if !cents.BigInt().IsInt64() {
		return 0, errors.New("price is too large")
	}

	return cents.IntPart(), nil
}

// AddToCart добавляет позицию меню в корзину пользователя или увеличивает количество
// существующей строки. Нулевое количество означает одну штуку.
func (s *Service) AddToCart(ctx context.Context, userID, foodID int64, quantity int) error {
	if foodID <= 0 {
		return fmt.Errorf("%w: food_id is required", ErrValidation)
	}
	if quantity < 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if quantity == 0 {
		quantity = 1
	}

	return s.repo.AddCartItem(ctx, userID, foodID, quantity)
}

// ViewCart возвращает строки корзины пользователя. Вторым значением — идентификаторы
// позиций, исчезнувших из каталога: такие строки пропущены, а не посчитаны по нулевой цене.
func (s *Service) ViewCart(ctx context.Context, userID int64) ([]model.CartLine, []int64, error) {
	return s.repo.GetCartLines(ctx, userID)
}

// ClearCart очищает корзину пользователя.
func (s *Service) ClearCart(ctx context.Context, userID int64) error {
	return s.repo.ClearCart(ctx, userID)
}

// Checkout оформляет заказ по текущей корзине пользователя и очищает её.
// Операция атомарна на уровне хранилища.
func (s *Service) Checkout(ctx context.Context, userID int64) (*model.Order, error) {
	return s.repo.Checkout(ctx, userID)
}

// ListOrders возвращает историю всех оформленных заказов.
func (s *Service) ListOrders(ctx context.Context) ([]model.Order, error) {
	return s.repo.ListOrders(ctx)
}
