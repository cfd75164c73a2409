package query

import (
	"strings"

	"deadlineTracker/internal/models/deadline"
)

type Order int

const (
	OrderDueAsc Order = iota
	OrderDueDesc
)

const (
	NameLatest     = "latest"
	NameQuiz       = "quiz"
	NameAssignment = "assignment"
	NameDone       = "done"
	NameSearch     = "search"
)

// Filter - предикат выборки и порядок сортировки.
// Запись подходит, если совпал статус и (при наличии терминов)
// task_name содержит один из TaskTerms или course_name содержит один из CourseTerms.
type Filter struct {
	Name        string
	Status      deadline.Status
	TaskTerms   []string
	CourseTerms []string
	Order       Order
}

// порядок важен: первое найденное ключевое слово побеждает
var keywords = []struct {
	keyword string
	build   func() Filter
}{
	{NameLatest, Latest},
	{NameQuiz, func() Filter {
		return Filter{
			Name:        NameQuiz,
			Status:      deadline.StatusPending,
			TaskTerms:   []string{"quiz"},
			CourseTerms: []string{"quiz"},
			Order:       OrderDueAsc,
		}
	}},
	{NameAssignment, func() Filter {
		return Filter{
			Name:      NameAssignment,
			Status:    deadline.StatusPending,
			TaskTerms: []string{"assignment", "p-set"},
			Order:     OrderDueAsc,
		}
	}},
	{NameDone, func() Filter {
		return Filter{
			Name:   NameDone,
			Status: deadline.StatusDone,
			Order:  OrderDueDesc,
		}
	}},
}

// Resolve превращает свободный текст в фильтр. Неизвестный текст даёт фильтр по умолчанию.
func Resolve(text string) Filter {
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lowered, kw.keyword) {
			return kw.build()
		}
	}
	return Latest()
}

func Latest() Filter {
	return Filter{
		Name:   NameLatest,
		Status: deadline.StatusPending,
		Order:  OrderDueAsc,
	}
}

// TaskSearch - поиск незавершённых задач для удаления
func TaskSearch(term string) Filter {
	return Filter{
		Name:      NameSearch,
		Status:    deadline.StatusPending,
		TaskTerms: []string{term},
		Order:     OrderDueAsc,
	}
}

func (f Filter) HasTerms() bool {
	return len(f.TaskTerms) > 0 || len(f.CourseTerms) > 0
}

func (f Filter) Match(d *deadline.Deadline) bool {
	if d.Status != f.Status {
		return false
	}
	if !f.HasTerms() {
		return true
	}

	name := strings.ToLower(d.TaskName)
	for _, term := range f.TaskTerms {
		if strings.Contains(name, strings.ToLower(term)) {
			return true
		}
	}

	course := strings.ToLower(d.Course())
	for _, term := range f.CourseTerms {
		if course != "" && strings.Contains(course, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// Less задаёт порядок выдачи; при равных датах - по id
func (f Filter) Less(a, b *deadline.Deadline) bool {
	if !a.DueDate.Equal(b.DueDate) {
		if f.Order == OrderDueDesc {
			return a.DueDate.After(b.DueDate)
		}
		return a.DueDate.Before(b.DueDate)
	}
	return a.ID < b.ID
}

// LikePattern готовит шаблон для LOWER(col) LIKE ? ESCAPE '\'
func LikePattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(term)) + "%"
}
