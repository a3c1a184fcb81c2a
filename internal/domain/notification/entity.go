// Package notification содержит доменную модель пользовательских уведомлений.
// Уведомление - короткое временное сообщение (тост) о результате операции.
package notification

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// KIND
// ══════════════════════════════════════════════════════════════════════════════

// Kind определяет тип уведомления.
type Kind string

const (
	// KindFetchFailed - не удалось загрузить список студентов.
	KindFetchFailed Kind = "fetch_failed"

	// KindInsertFailed - не удалось добавить студента.
	KindInsertFailed Kind = "insert_failed"

	// KindUpdateFailed - не удалось обновить студента.
	KindUpdateFailed Kind = "update_failed"

	// KindDeleteFailed - не удалось удалить студента.
	KindDeleteFailed Kind = "delete_failed"

	// KindMissingFields - форма отправлена с пустыми полями.
	// До репозитория такой запрос не доходит.
	KindMissingFields Kind = "missing_fields"

	// KindRegistered - студент успешно зарегистрирован.
	KindRegistered Kind = "registered"

	// KindUpdated - студент успешно обновлён.
	KindUpdated Kind = "updated"

	// KindDeleted - студент успешно удалён.
	KindDeleted Kind = "deleted"
)

// IsValid проверяет, что тип корректен.
func (k Kind) IsValid() bool {
	switch k {
	case KindFetchFailed, KindInsertFailed, KindUpdateFailed, KindDeleteFailed,
		KindMissingFields, KindRegistered, KindUpdated, KindDeleted:
		return true
	default:
		return false
	}
}

// IsFailure возвращает true для типов ошибок.
func (k Kind) IsFailure() bool {
	switch k {
	case KindFetchFailed, KindInsertFailed, KindUpdateFailed, KindDeleteFailed, KindMissingFields:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление типа.
func (k Kind) String() string {
	return string(k)
}

// ══════════════════════════════════════════════════════════════════════════════
// VARIANT
// ══════════════════════════════════════════════════════════════════════════════

// Variant определяет визуальный стиль уведомления.
type Variant string

const (
	// VariantDefault - обычное уведомление.
	VariantDefault Variant = "default"
	// VariantDestructive - ошибка или отклонённый ввод.
	VariantDestructive Variant = "destructive"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: NOTIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Notification - сообщение, показываемое пользователю.
type Notification struct {
	// Seq - порядковый номер, назначается шиной при публикации.
	Seq uint64 `json:"seq"`

	// Kind - тип уведомления.
	Kind Kind `json:"kind"`

	// Title - заголовок.
	Title string `json:"title"`

	// Description - текст.
	Description string `json:"description"`

	// Variant - стиль.
	Variant Variant `json:"variant"`

	// StudentID - связанный студент, если есть.
	StudentID string `json:"student_id,omitempty"`

	// CreatedAt - время создания.
	CreatedAt time.Time `json:"created_at"`
}

// String возвращает краткое описание уведомления.
func (n Notification) String() string {
	return fmt.Sprintf("[%s] %s: %s", n.Kind, n.Title, n.Description)
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORIES
// ══════════════════════════════════════════════════════════════════════════════

// titleSuccess - общий заголовок успешных операций.
const titleSuccess = "Success!"

func newNotification(kind Kind, title, description string, variant Variant) Notification {
	return Notification{
		Kind:        kind,
		Title:       title,
		Description: description,
		Variant:     variant,
		CreatedAt:   time.Now().UTC(),
	}
}

// FetchFailed создаёт уведомление о неудачной загрузке.
func FetchFailed() Notification {
	return newNotification(KindFetchFailed, "Error", "Failed to fetch students.", VariantDestructive)
}

// InsertFailed создаёт уведомление о неудачной вставке.
func InsertFailed() Notification {
	return newNotification(KindInsertFailed, "Error", "Failed to add student.", VariantDestructive)
}

// UpdateFailed создаёт уведомление о неудачном обновлении.
func UpdateFailed(studentID string) Notification {
	n := newNotification(KindUpdateFailed, "Error", "Failed to update student.", VariantDestructive)
	n.StudentID = studentID
	return n
}

// DeleteFailed создаёт уведомление о неудачном удалении.
func DeleteFailed(studentID string) Notification {
	n := newNotification(KindDeleteFailed, "Error", "Failed to delete student.", VariantDestructive)
	n.StudentID = studentID
	return n
}

// MissingFields создаёт уведомление о незаполненной форме.
func MissingFields() Notification {
	return newNotification(KindMissingFields, "Missing Information", "Please fill in all required fields.", VariantDestructive)
}

// Registered создаёт уведомление об успешной регистрации.
func Registered(studentID, name string) Notification {
	n := newNotification(KindRegistered, titleSuccess, fmt.Sprintf("%s has been registered.", name), VariantDefault)
	n.StudentID = studentID
	return n
}

// Updated создаёт уведомление об успешном обновлении.
func Updated(studentID string) Notification {
	n := newNotification(KindUpdated, titleSuccess, "Student updated successfully.", VariantDefault)
	n.StudentID = studentID
	return n
}

// Deleted создаёт уведомление об успешном удалении.
func Deleted(studentID string) Notification {
	n := newNotification(KindDeleted, titleSuccess, "Student deleted successfully.", VariantDefault)
	n.StudentID = studentID
	return n
}
