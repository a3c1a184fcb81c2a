// Package student содержит доменную модель студента музыкальной школы.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package student

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/music-school-hub/student-registry/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// SkillLevel определяет уровень владения инструментом.
// Закрытое перечисление: других значений не существует.
type SkillLevel string

const (
	// SkillBeginner - начинающий.
	SkillBeginner SkillLevel = "Beginner"
	// SkillIntermediate - средний уровень.
	SkillIntermediate SkillLevel = "Intermediate"
	// SkillAdvanced - продвинутый.
	SkillAdvanced SkillLevel = "Advanced"
)

// SkillLevels возвращает все допустимые уровни в порядке возрастания.
func SkillLevels() []SkillLevel {
	return []SkillLevel{SkillBeginner, SkillIntermediate, SkillAdvanced}
}

// IsValid проверяет, что уровень корректен.
func (s SkillLevel) IsValid() bool {
	switch s {
	case SkillBeginner, SkillIntermediate, SkillAdvanced:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление уровня.
func (s SkillLevel) String() string {
	return string(s)
}

// ParseSkillLevel разбирает строку в SkillLevel.
// Регистр не учитывается, пробелы по краям отбрасываются.
func ParseSkillLevel(s string) (SkillLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "beginner":
		return SkillBeginner, nil
	case "intermediate":
		return SkillIntermediate, nil
	case "advanced":
		return SkillAdvanced, nil
	default:
		return "", shared.WrapError("student", "ParseSkillLevel", shared.ErrInvalidInput,
			fmt.Sprintf("unknown skill level %q", s), shared.ErrInvalidSkillLevel)
	}
}

// UnmarshalText не даёт декодировать значение вне перечисления.
func (s *SkillLevel) UnmarshalText(text []byte) error {
	level, err := ParseSkillLevel(string(text))
	if err != nil {
		return err
	}
	*s = level
	return nil
}

// MarshalText кодирует уровень, отклоняя невалидные значения.
func (s SkillLevel) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, shared.ErrInvalidSkillLevel
	}
	return []byte(s), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - единственная сущность системы, зарегистрированный ученик.
// ID и RegisteredAt назначаются хранилищем и после создания не меняются.
type Student struct {
	// ID - непрозрачный уникальный идентификатор, выданный хранилищем.
	ID string `json:"id"`

	// Name - отображаемое имя.
	Name string `json:"name"`

	// Email - адрес почты (проверяется только на непустоту).
	Email string `json:"email"`

	// Instrument - инструмент в свободной форме.
	Instrument string `json:"instrument"`

	// SkillLevel - уровень владения инструментом.
	SkillLevel SkillLevel `json:"skill_level"`

	// RegisteredAt - время регистрации, ключ сортировки по умолчанию.
	RegisteredAt time.Time `json:"registered_at"`
}

// Clone создаёт копию студента.
func (s *Student) Clone() *Student {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// String возвращает краткое описание студента для логов.
func (s *Student) String() string {
	return fmt.Sprintf("Student{ID: %s, Name: %s, Instrument: %s, Level: %s}",
		s.ID, s.Name, s.Instrument, s.SkillLevel)
}

// Validate проверяет инварианты записи, полученной от хранилища.
func (s *Student) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return shared.NewDomainError("student", "Validate", shared.ErrInvalidID, "student id is required")
	}
	if !s.SkillLevel.IsValid() {
		return shared.ErrInvalidSkillLevel
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DRAFT & PATCH
// ══════════════════════════════════════════════════════════════════════════════

// Draft - кандидат на регистрацию: студент без ID и RegisteredAt.
// Хранилище вставляет ровно эти поля.
type Draft struct {
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Instrument string     `json:"instrument"`
	SkillLevel SkillLevel `json:"skill_level"`
}

// Patch - частичное обновление. nil означает "поле не меняется".
type Patch struct {
	Name       *string     `json:"name,omitempty"`
	Email      *string     `json:"email,omitempty"`
	Instrument *string     `json:"instrument,omitempty"`
	SkillLevel *SkillLevel `json:"skill_level,omitempty"`
}

// IsEmpty возвращает true, если патч не содержит ни одного поля.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Instrument == nil && p.SkillLevel == nil
}

// Fields возвращает имена колонок, присутствующих в патче, в фиксированном порядке.
func (p Patch) Fields() []string {
	fields := make([]string, 0, 4)
	if p.Name != nil {
		fields = append(fields, "name")
	}
	if p.Email != nil {
		fields = append(fields, "email")
	}
	if p.Instrument != nil {
		fields = append(fields, "instrument")
	}
	if p.SkillLevel != nil {
		fields = append(fields, "skill_level")
	}
	return fields
}

// Apply применяет патч к копии студента. Используется хранилищами,
// которые не умеют возвращать обновлённую строку сами.
func (p Patch) Apply(s *Student) *Student {
	out := s.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.Instrument != nil {
		out.Instrument = *p.Instrument
	}
	if p.SkillLevel != nil {
		out.SkillLevel = *p.SkillLevel
	}
	return out
}

// MarshalJSON кодирует только присутствующие поля.
func (p Patch) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 4)
	if p.Name != nil {
		m["name"] = *p.Name
	}
	if p.Email != nil {
		m["email"] = *p.Email
	}
	if p.Instrument != nil {
		m["instrument"] = *p.Instrument
	}
	if p.SkillLevel != nil {
		if !p.SkillLevel.IsValid() {
			return nil, shared.ErrInvalidSkillLevel
		}
		m["skill_level"] = *p.SkillLevel
	}
	return json.Marshal(m)
}

// StringPtr - помощник для сборки патчей.
func StringPtr(s string) *string { return &s }

// SkillPtr - помощник для сборки патчей.
func SkillPtr(s SkillLevel) *SkillLevel { return &s }
