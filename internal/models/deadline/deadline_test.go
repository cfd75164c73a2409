package deadline_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"deadlineTracker/internal/models/deadline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// TestNormalize тестирует проверку и нормализацию кандидатов
func TestNormalize(t *testing.T) {
	tests := []struct {
		name           string
		candidate      deadline.Candidate
		expectedName   string
		expectedDate   string
		expectedCourse *string
		errorField     string
	}{
		{
			name:           "success - iso date with course",
			candidate:      deadline.Candidate{TaskName: "Homework 3", DueDate: "2025-11-10", CourseName: "CS410"},
			expectedName:   "Homework 3",
			expectedDate:   "2025-11-10",
			expectedCourse: strPtr("CS410"),
		},
		{
			name:         "success - trims name, no course",
			candidate:    deadline.Candidate{TaskName: "  Internship Application ", DueDate: "2025-12-01"},
			expectedName: "Internship Application",
			expectedDate: "2025-12-01",
		},
		{
			name:         "success - rfc3339 keeps local date",
			candidate:    deadline.Candidate{TaskName: "Quiz 2", DueDate: "2025-11-10T23:30:00-05:00"},
			expectedName: "Quiz 2",
			expectedDate: "2025-11-10",
		},
		{
			name:         "success - slash date",
			candidate:    deadline.Candidate{TaskName: "Lab", DueDate: "2025/03/04"},
			expectedName: "Lab",
			expectedDate: "2025-03-04",
		},
		{
			name:         "success - time value",
			candidate:    deadline.Candidate{TaskName: "Lab", DueDate: time.Date(2025, 3, 4, 18, 0, 0, 0, time.UTC)},
			expectedName: "Lab",
			expectedDate: "2025-03-04",
		},
		{
			name:         "success - blank course becomes absent",
			candidate:    deadline.Candidate{TaskName: "Essay", DueDate: "2025-01-02", CourseName: "   "},
			expectedName: "Essay",
			expectedDate: "2025-01-02",
		},
		{
			name:           "success - numeric course is coerced",
			candidate:      deadline.Candidate{TaskName: "Essay", DueDate: "2025-01-02", CourseName: float64(410)},
			expectedName:   "Essay",
			expectedDate:   "2025-01-02",
			expectedCourse: strPtr("410"),
		},
		{
			name:       "error - missing name",
			candidate:  deadline.Candidate{DueDate: "2025-01-02"},
			errorField: "task_name",
		},
		{
			name:       "error - blank name",
			candidate:  deadline.Candidate{TaskName: "   ", DueDate: "2025-01-02"},
			errorField: "task_name",
		},
		{
			name:       "error - name is not text",
			candidate:  deadline.Candidate{TaskName: 42.0, DueDate: "2025-01-02"},
			errorField: "task_name",
		},
		{
			name:       "error - missing date",
			candidate:  deadline.Candidate{TaskName: "Quiz"},
			errorField: "due_date",
		},
		{
			name:       "error - natural language date",
			candidate:  deadline.Candidate{TaskName: "Quiz", DueDate: "next Friday"},
			errorField: "due_date",
		},
		{
			name:       "error - impossible calendar date",
			candidate:  deadline.Candidate{TaskName: "Quiz", DueDate: "2025-02-30"},
			errorField: "due_date",
		},
		{
			name:         "success - first calendar day is kept as is",
			candidate:    deadline.Candidate{TaskName: "Bad", DueDate: "0001-01-01"},
			expectedName: "Bad",
			expectedDate: "0001-01-01",
		},
		{
			name:       "error - zero time value",
			candidate:  deadline.Candidate{TaskName: "Quiz", DueDate: time.Time{}},
			errorField: "due_date",
		},
		{
			name:       "error - year beyond four digits",
			candidate:  deadline.Candidate{TaskName: "Quiz", DueDate: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)},
			errorField: "due_date",
		},
		{
			name:       "error - unset date value",
			candidate:  deadline.Candidate{TaskName: "Quiz", DueDate: deadline.Date{}},
			errorField: "due_date",
		},
		{
			name:       "error - course of wrong type",
			candidate:  deadline.Candidate{TaskName: "Quiz", DueDate: "2025-02-03", CourseName: []any{"x"}},
			errorField: "course_name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := deadline.Normalize(tt.candidate)

			if tt.errorField != "" {
				require.Error(t, err)
				var vErr *deadline.ValidationError
				require.True(t, errors.As(err, &vErr), "Expected ValidationError")
				assert.Equal(t, tt.errorField, vErr.Field)
				assert.Nil(t, result)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedName, result.TaskName)
			assert.Equal(t, tt.expectedDate, result.DueDate.String())
			assert.Equal(t, tt.expectedCourse, result.CourseName)
			assert.Equal(t, deadline.StatusPending, result.Status)
		})
	}
}

// TestCandidate_FromJSON проверяет, что кандидат из ответа модели разбирается без доверия к типам
func TestCandidate_FromJSON(t *testing.T) {
	payload := `[
		{"task_name": "Homework 3", "due_date": "2025-11-10", "course_name": "CS410"},
		{"task_name": null, "due_date": "2025-11-10"},
		{"task_name": "Quiz", "due_date": 20251110}
	]`

	var candidates []deadline.Candidate
	require.NoError(t, json.Unmarshal([]byte(payload), &candidates))
	require.Len(t, candidates, 3)

	_, err := deadline.Normalize(candidates[0])
	assert.NoError(t, err)

	_, err = deadline.Normalize(candidates[1])
	assert.Error(t, err)

	_, err = deadline.Normalize(candidates[2])
	assert.Error(t, err)
}

func TestDate(t *testing.T) {
	d := deadline.MustParseDate("2025-01-31")

	assert.Equal(t, "2025-02-01", d.AddDays(1).String())
	assert.True(t, d.Before(deadline.MustParseDate("2025-02-01")))
	assert.True(t, d.After(deadline.MustParseDate("2020-01-01")))

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-01-31"`, string(raw))

	var back deadline.Date
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Equal(d))

	var scanned deadline.Date
	require.NoError(t, scanned.Scan([]byte("2024-02-29")))
	assert.Equal(t, "2024-02-29", scanned.String())
	assert.Error(t, scanned.Scan("2023-02-29"))
}

func TestDeadline_Key(t *testing.T) {
	a := &deadline.Deadline{TaskName: "Essay", DueDate: deadline.MustParseDate("2025-01-02")}
	b := &deadline.Deadline{TaskName: "Essay", CourseName: strPtr(""), DueDate: deadline.MustParseDate("2025-01-02")}
	c := &deadline.Deadline{TaskName: "Essay", CourseName: strPtr("ENG"), DueDate: deadline.MustParseDate("2025-01-02")}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

// TestDate_UnsetVersusYearOne проверяет, что пустая дата не совпадает с 0001-01-01
func TestDate_UnsetVersusYearOne(t *testing.T) {
	var unset deadline.Date
	yearOne := deadline.MustParseDate("0001-01-01")

	assert.True(t, unset.IsZero())
	assert.False(t, yearOne.IsZero())
	assert.Equal(t, "", unset.String())
	assert.Equal(t, "0001-01-01", yearOne.String())

	_, err := unset.Value()
	assert.ErrorIs(t, err, deadline.ErrUnsetDate)

	v, err := yearOne.Value()
	require.NoError(t, err)
	assert.Equal(t, "0001-01-01", v)

	var scanned deadline.Date
	require.NoError(t, scanned.Scan(v))
	assert.True(t, scanned.Equal(yearOne))

	_, err = deadline.NewDate(10000, time.January, 1).Value()
	assert.Error(t, err)
}
