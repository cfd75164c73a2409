package deadline

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Допустимые годы: вне диапазона дата не пишется четырьмя цифрами
const (
	MinYear = 1
	MaxYear = 9999
)

var ErrUnsetDate = errors.New("дата не задана")

// Date - календарная дата без времени, хранится как текст YYYY-MM-DD.
// Нулевое значение означает "не задана" и отличается от 0001-01-01.
type Date struct {
	t     time.Time
	valid bool
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), valid: true}
}

// DateOf отбрасывает время и часовой пояс, оставляя дату в его собственной зоне
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return DateOf(time.Now())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	if !d.valid {
		return ""
	}
	return d.t.Format(DateLayout)
}

func (d Date) Time() time.Time {
	return d.t
}

func (d Date) IsZero() bool {
	return !d.valid
}

// InRange сообщает, что дата задана и её год пишется четырьмя цифрами
func (d Date) InRange() bool {
	return d.valid && d.t.Year() >= MinYear && d.t.Year() <= MaxYear
}

func (d Date) Before(other Date) bool {
	return d.t.Before(other.t)
}

func (d Date) After(other Date) bool {
	return d.t.After(other.t)
}

func (d Date) Equal(other Date) bool {
	return d.t.Equal(other.t)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.t.AddDate(0, 0, n))
}

// DaysUntil - число дней от d до other, отрицательное если other раньше
func (d Date) DaysUntil(other Date) int {
	return int(other.t.Sub(d.t).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("дата должна быть строкой: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value не пропускает в хранилище пустую или непредставимую дату
func (d Date) Value() (driver.Value, error) {
	if !d.valid {
		return nil, ErrUnsetDate
	}
	if !d.InRange() {
		return nil, fmt.Errorf("год %d вне диапазона %d-%d", d.t.Year(), MinYear, MaxYear)
	}
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	case time.Time:
		*d = DateOf(v)
		return nil
	case nil:
		*d = Date{}
		return nil
	default:
		return fmt.Errorf("неподдерживаемый тип даты %T", src)
	}
}

func (d *Date) scanText(s string) error {
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("чтение даты %q: %w", s, err)
	}
	*d = parsed
	return nil
}

// GormDataType нужен AutoMigrate, чтобы колонка была TEXT
func (Date) GormDataType() string {
	return "text"
}
