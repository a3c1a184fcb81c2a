package student

import (
	"context"

	"github.com/music-school-hub/student-registry/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE INTERFACE
// Контракт удалённого хранилища студентов (Supabase, Postgres, SQLite, память).
// Реализации находятся в infrastructure.
// ══════════════════════════════════════════════════════════════════════════════

// Ошибки хранилища, проверяемые через errors.Is.
var (
	// ErrStudentNotFound - запись с таким id отсутствует.
	ErrStudentNotFound = shared.ErrStudentNotFound

	// ErrStudentAlreadyExists - запись с таким id уже есть.
	ErrStudentAlreadyExists = shared.ErrStudentAlreadyExists

	// ErrInvalidSkillLevel - значение вне перечисления.
	ErrInvalidSkillLevel = shared.ErrInvalidSkillLevel

	// ErrEmptyPatch - патч без полей.
	ErrEmptyPatch = shared.ErrEmptyPatch
)

// Store определяет операции над таблицей студентов.
// Любая ошибка трактуется вызывающей стороной как провал операции.
type Store interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Read
	// ─────────────────────────────────────────────────────────────────────────

	// List возвращает все строки в указанном порядке.
	List(ctx context.Context, opts ListOptions) ([]*Student, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Write
	// ─────────────────────────────────────────────────────────────────────────

	// Insert сохраняет черновик и возвращает полную запись
	// с назначенными хранилищем ID и RegisteredAt.
	Insert(ctx context.Context, draft Draft) (*Student, error)

	// Update применяет частичное обновление и возвращает обновлённую строку.
	// Возвращает ErrStudentNotFound, если id неизвестен.
	Update(ctx context.Context, id string, patch Patch) (*Student, error)

	// Delete удаляет строку.
	// Возвращает ErrStudentNotFound, если id неизвестен.
	Delete(ctx context.Context, id string) error
}

// Колонки, по которым разрешена сортировка.
const (
	OrderByRegisteredAt = "registered_at"
	OrderByName         = "name"
)

// ListOptions содержит параметры сортировки.
type ListOptions struct {
	// OrderBy - колонка сортировки.
	OrderBy string

	// Descending - сортировка по убыванию.
	Descending bool
}

// DefaultListOptions возвращает порядок начальной загрузки: новые первыми.
func DefaultListOptions() ListOptions {
	return ListOptions{
		OrderBy:    OrderByRegisteredAt,
		Descending: true,
	}
}

// WithOrder устанавливает сортировку.
func (o ListOptions) WithOrder(column string, desc bool) ListOptions {
	o.OrderBy = column
	o.Descending = desc
	return o
}

// Column возвращает безопасное имя колонки для SQL.
// Неизвестные значения сводятся к registered_at.
func (o ListOptions) Column() string {
	switch o.OrderBy {
	case OrderByName:
		return OrderByName
	default:
		return OrderByRegisteredAt
	}
}

// Direction возвращает "DESC" или "ASC".
func (o ListOptions) Direction() string {
	if o.Descending {
		return "DESC"
	}
	return "ASC"
}
