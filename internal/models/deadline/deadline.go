package deadline

type Deadline struct {
	ID         int64   `json:"id" gorm:"primaryKey;autoIncrement"`
	TaskName   string  `json:"task_name" gorm:"column:task_name;not null"`
	CourseName *string `json:"course_name,omitempty" gorm:"column:course_name"`
	DueDate    Date    `json:"due_date" gorm:"column:due_date;not null"`
	Status     Status  `json:"status" gorm:"column:status;type:text;default:pending"`
}

type Status string

const StatusPending Status = "pending"
const StatusDone Status = "done"

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusDone
}

// Course возвращает название курса или пустую строку
func (d *Deadline) Course() string {
	if d.CourseName == nil {
		return ""
	}
	return *d.CourseName
}

// Key - тройка, по которой запись уникальна; отсутствующий курс равен пустому
func (d *Deadline) Key() string {
	return d.TaskName + "\x00" + d.Course() + "\x00" + d.DueDate.String()
}

func (Deadline) TableName() string {
	return "deadlines"
}
