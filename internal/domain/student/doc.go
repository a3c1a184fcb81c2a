// Package student содержит доменную модель студента музыкальной школы.
//
// Пакет определяет:
//
//   - Сущность Student и её неизменяемые поля ID и RegisteredAt
//   - Закрытое перечисление SkillLevel (Beginner, Intermediate, Advanced)
//   - Draft (кандидат на вставку) и Patch (частичное обновление)
//   - Интерфейс Store - контракт удалённого хранилища студентов
//
// # Архитектурные принципы
//
//  1. Нулевые внешние зависимости - только стандартная библиотека Go
//  2. Dependency Inversion - Store реализуется в infrastructure
//  3. Хранилище - единственный источник ID и времени регистрации
//
// # Уровни владения
//
// SkillLevel нельзя получить из произвольной строки в обход ParseSkillLevel:
//
//	level, err := ParseSkillLevel("intermediate")
//	if err != nil {
//	    return err // ErrInvalidSkillLevel
//	}
//
// Каждый switch по SkillLevel перечисляет все три значения явно.
//
// # Пример использования
//
//	created, err := store.Insert(ctx, Draft{
//	    Name:       "Alice",
//	    Email:      "alice@example.com",
//	    Instrument: "Piano",
//	    SkillLevel: SkillBeginner,
//	})
//
//	updated, err := store.Update(ctx, created.ID, Patch{
//	    Instrument: StringPtr("Cello"),
//	})
package student
