// Package model содержит доменные сущности сервиса фудкорт.
package model

import (
	"fmt"
	"time"
)

// Role описывает уровень доступа пользователя. Роль хранится в БД строкой,
// но в коде представлена закрытым перечислением.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// ParseRole преобразует строку в роль. Пустая строка означает роль по умолчанию
// (customer), неизвестное значение — ошибка.
func ParseRole(s string) (Role, error) {
	switch s {
	case "":
		return RoleCustomer, nil
	case string(RoleAdmin):
		return RoleAdmin, nil
	case string(RoleCustomer):
		return RoleCustomer, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// User представляет зарегистрированного пользователя сервиса.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash []byte
	Role         Role
	MobileNumber string
	Address      string
	CreatedAt    time.Time
}

// FoodItem описывает позицию меню. Цена хранится в центах.
type FoodItem struct {
	ID        int64
	Name      string
	Price     int64
	CreatedAt time.Time
}

// CartLine описывает строку корзины с уже разрешённой позицией меню:
// результат соединения корзины с каталогом.
type CartLine struct {
	FoodID   int64
	Name     string
	Price    int64
	Quantity int
}

// OrderItem описывает одну строку оформленного заказа.
type OrderItem struct {
	FoodID   int64
	Quantity int
}

// Order описывает оформленный заказ. После создания не изменяется.
type Order struct {
	ID        int64
	UserID    int64
	Items     []OrderItem
	Total     int64
	CreatedAt time.Time
}

// TotalCents возвращает сумму в центах по строкам корзины.
func TotalCents(lines []CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.Price * int64(l.Quantity)
	}
	return total
}

// CentsToFloat переводит сумму из центов в единицы валюты для JSON-ответов.
func CentsToFloat(cents int64) float64 {
	return float64(cents) / 100
}
