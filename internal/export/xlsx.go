package export

import (
	"errors"
	"fmt"
	"io"
	"os"

	"deadlineTracker/internal/models/deadline"

	"github.com/dustin/go-humanize"
	"github.com/xuri/excelize/v2"
)

const SheetName = "Deadlines"

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var header = []string{"ID", "Task", "Course", "Due date", "Due", "Status"}

// DueIn - срок относительно today: "today", "tomorrow", "3 days from now", "2 weeks ago"
func DueIn(due, today deadline.Date) string {
	switch today.DaysUntil(due) {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	case -1:
		return "yesterday"
	}
	return humanize.RelTime(due.Time(), today.Time(), "ago", "from now")
}

// WriteXLSX пишет записи в книгу с одним листом
func WriteXLSX(w io.Writer, rows []*deadline.Deadline, today deadline.Date) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("переименование листа: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("стиль заголовка: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("создание потока: %w", err)
	}
	if err := sw.SetColWidth(2, 2, 40); err != nil {
		return err
	}
	if err := sw.SetColWidth(3, 5, 18); err != nil {
		return err
	}

	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = excelize.Cell{StyleID: headerStyle, Value: h}
	}
	if err := sw.SetRow("A1", cells); err != nil {
		return fmt.Errorf("запись заголовка: %w", err)
	}

	for i, d := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []any{
			d.ID,
			d.TaskName,
			d.Course(),
			d.DueDate.String(),
			DueIn(d.DueDate, today),
			string(d.Status),
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("запись строки %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("сброс потока: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("запись книги: %w", err)
	}
	return nil
}

// WriteXLSXFile пишет выгрузку в файл; ошибка закрытия файла тоже возвращается
func WriteXLSXFile(path string, rows []*deadline.Deadline, today deadline.Date) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("создание %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("закрытие %s: %w", path, closeErr))
		}
	}()

	return WriteXLSX(file, rows, today)
}
