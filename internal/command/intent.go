package command

import (
	"strings"
	"unicode"
)

type IntentKind int

const (
	IntentFilter IntentKind = iota
	IntentDelete
)

const deletePrefix = "delete"

// Intent - результат разбора пользовательского ввода
type Intent struct {
	Kind IntentKind
	// Filter - текст фильтра в нижнем регистре
	Filter string
	// Term - искомое имя задачи с сохранённым регистром
	Term string
}

type CommandError struct {
	Message string
}

func (e *CommandError) Error() string {
	return e.Message
}

var ErrSpecifyTask = &CommandError{Message: "Please specify a task to delete, e.g. 'delete Quiz 1'."}

// Interpret относит ввод к удалению или фильтру
func Interpret(text string) (Intent, error) {
	trimmed := strings.TrimSpace(text)

	if isDelete(trimmed) {
		term := strings.TrimSpace(trimmed[len(deletePrefix):])
		if term == "" {
			return Intent{}, ErrSpecifyTask
		}
		return Intent{Kind: IntentDelete, Term: term}, nil
	}

	return Intent{Kind: IntentFilter, Filter: strings.ToLower(trimmed)}, nil
}

// "delete" считается командой, только если за ним пробел или конец строки
func isDelete(s string) bool {
	if len(s) < len(deletePrefix) || !strings.EqualFold(s[:len(deletePrefix)], deletePrefix) {
		return false
	}
	rest := s[len(deletePrefix):]
	if rest == "" {
		return true
	}
	r := []rune(rest)[0]
	return unicode.IsSpace(r)
}
