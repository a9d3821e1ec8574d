// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mmeshcher/foodcourt-system/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке регистрации с занятым логином или email.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrFoodNotFound возвращается при ссылке на несуществующую позицию меню.
	ErrFoodNotFound = errors.New("food item not found")
	// ErrCartInconsistent возвращается, если строка корзины ссылается на исчезнувшую позицию меню.
	ErrCartInconsistent = errors.New("cart references missing food item")
	// ErrEmptyCart возвращается при попытке оформить заказ с пустой корзиной.
	ErrEmptyCart = errors.New("cart is empty")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраим только конфликты сериализации и дедлоки: остальные ошибки окончательны.
		retryable := false
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			retryable = pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
		}
		if !retryable {
			retryable = isConnectionError(err)
		}

		if !retryable || i >= len(delays) {
			break
		}

		if waitErr := sleepCtx(ctx, delays[i]); waitErr != nil {
			return err
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя. Логин и email уникальны.
func (r *PostgresRepository) CreateUser(ctx context.Context, username, email string, passwordHash []byte, role model.Role) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING id`,
		username, email, passwordHash, string(role),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, username)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByUsername возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, role, mobile_number, address, created_at
		 FROM users WHERE username = $1`,
		username,
	)

	return scanUser(row)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, role, mobile_number, address, created_at
		 FROM users WHERE id = $1`,
		id,
	)

	return scanUser(row)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.MobileNumber, &u.Address, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.Role(role)

	return &u, nil
}

// ListUsers возвращает всех зарегистрированных пользователей в порядке регистрации.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, username, email, password_hash, role, mobile_number, address, created_at
		 FROM users
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		var role string
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.MobileNumber, &u.Address, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = model.Role(role)
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}

// UpdateUserContact перезаписывает контактные данные пользователя.
func (r *PostgresRepository) UpdateUserContact(ctx context.Context, userID int64, mobileNumber, address string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET mobile_number = $2, address = $3 WHERE id = $1`,
		userID, mobileNumber, address,
	)
	if err != nil {
		return fmt.Errorf("update user contact: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// CreateFood добавляет позицию меню. Цена в центах.
func (r *PostgresRepository) CreateFood(ctx context.Context, name string, price int64) (*model.FoodItem, error) {
	var f model.FoodItem
	err := r.pool.QueryRow(ctx,
		`INSERT INTO foods (name, price) VALUES ($1, $2) RETURNING id, name, price, created_at`,
		name, price,
	).Scan(&f.ID, &f.Name, &f.Price, &f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create food: %w", err)
	}
	return &f, nil
}

// ListFood возвращает все позиции меню в порядке добавления.
func (r *PostgresRepository) ListFood(ctx context.Context) ([]model.FoodItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, price, created_at FROM foods ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select foods: %w", err)
	}
	defer rows.Close()

	var foods []model.FoodItem
	for rows.Next() {
		var f model.FoodItem
		if err := rows.Scan(&f.ID, &f.Name, &f.Price, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan food: %w", err)
		}
		foods = append(foods, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return foods, nil
}

// AddCartItem добавляет позицию в корзину пользователя или увеличивает её количество.
// Существование позиции меню проверяется в той же транзакции.
func (r *PostgresRepository) AddCartItem(ctx context.Context, userID, foodID int64, quantity int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM foods WHERE id = $1)`, foodID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check food: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: id %d", ErrFoodNotFound, foodID)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO cart_items (user_id, food_id, quantity) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, food_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		userID, foodID, quantity,
	)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetCartLines возвращает строки корзины пользователя с разрешёнными позициями меню.
// Строки, ссылающиеся на исчезнувшие позиции, не суммируются: их идентификаторы
// возвращаются отдельно для логирования вызывающей стороной.
func (r *PostgresRepository) GetCartLines(ctx context.Context, userID int64) ([]model.CartLine, []int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.food_id, c.quantity, f.name, f.price
		 FROM cart_items c
		 LEFT JOIN foods f ON f.id = c.food_id
		 WHERE c.user_id = $1
		 ORDER BY c.id`,
		userID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("select cart: %w", err)
	}
	defer rows.Close()

	var lines []model.CartLine
	var orphans []int64
	for rows.Next() {
		var (
			foodID   int64
			quantity int
			name     *string
			price    *int64
		)
		if err := rows.Scan(&foodID, &quantity, &name, &price); err != nil {
			return nil, nil, fmt.Errorf("scan cart line: %w", err)
		}

		if name == nil || price == nil {
			orphans = append(orphans, foodID)
			continue
		}

		lines = append(lines, model.CartLine{
			FoodID:   foodID,
			Name:     *name,
			Price:    *price,
			Quantity: quantity,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, orphans, nil
}

// ClearCart удаляет все строки корзины пользователя. Идемпотентна.
func (r *PostgresRepository) ClearCart(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Checkout атомарно оформляет заказ: читает корзину под блокировкой, сверяет каждую
// строку с каталогом, записывает заказ и очищает корзину. Любая несводимая строка
// откатывает всю операцию.
func (r *PostgresRepository) Checkout(ctx context.Context, userID int64) (*model.Order, error) {
	var order *model.Order

	err := r.withRetry(ctx, func() error {
		var txErr error
		order, txErr = r.checkoutTx(ctx, userID)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func (r *PostgresRepository) checkoutTx(ctx context.Context, userID int64) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем строки корзины: параллельный checkout того же пользователя
	// дождётся коммита и увидит уже пустую корзину.
	rows, err := tx.Query(ctx,
		`SELECT c.food_id, c.quantity, f.name, f.price
		 FROM cart_items c
		 LEFT JOIN foods f ON f.id = c.food_id
		 WHERE c.user_id = $1
		 ORDER BY c.id
		 FOR UPDATE OF c`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart for update: %w", err)
	}

	var lines []model.CartLine
	for rows.Next() {
		var (
			foodID   int64
			quantity int
			name     *string
			price    *int64
		)
		if err := rows.Scan(&foodID, &quantity, &name, &price); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan cart line: %w", err)
		}

		if name == nil || price == nil {
			rows.Close()
			return nil, fmt.Errorf("%w: food id %d", ErrCartInconsistent, foodID)
		}

		lines = append(lines, model.CartLine{
			FoodID:   foodID,
			Name:     *name,
			Price:    *price,
			Quantity: quantity,
		})
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	total := model.TotalCents(lines)

	order := &model.Order{
		UserID: userID,
		Total:  total,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (user_id, total) VALUES ($1, $2) RETURNING id, created_at`,
		userID, total,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, l := range lines {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (order_id, food_id, quantity) VALUES ($1, $2, $3)`,
			order.ID, l.FoodID, l.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
		order.Items = append(order.Items, model.OrderItem{FoodID: l.FoodID, Quantity: l.Quantity})
	}

	_, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return order, nil
}

// ListOrders возвращает все оформленные заказы с составом, новые первыми.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.user_id, o.total, o.created_at, i.food_id, i.quantity
		 FROM orders o
		 JOIN order_items i ON i.order_id = o.id
		 ORDER BY o.id DESC, i.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var (
			id        int64
			uid       int64
			total     int64
			createdAt time.Time
			foodID    int64
			quantity  int
		)
		if err := rows.Scan(&id, &uid, &total, &createdAt, &foodID, &quantity); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		if len(orders) == 0 || orders[len(orders)-1].ID != id {
			orders = append(orders, model.Order{
				ID:        id,
				UserID:    uid,
				Total:     total,
				CreatedAt: createdAt,
			})
		}

		last := &orders[len(orders)-1]
		last.Items = append(last.Items, model.OrderItem{FoodID: foodID, Quantity: quantity})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}
