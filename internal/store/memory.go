// Package store holds the in-memory data source used by the API when no database is configured.
// It is seeded from YAML fixtures on startup and reset on teardown.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/noah-isme/ace-lms-api/internal/models"
)

// ErrDuplicate is returned when a record with the same identity already exists.
var ErrDuplicate = errors.New("duplicate record")

type membership struct {
	userID string
	itemID string
}

// Memory is a mutex guarded set of tables. Reads return copies so callers never share state.
type Memory struct {
	mu  sync.RWMutex
	now func() time.Time

	courses      []models.Course
	enrollments  map[membership]models.Enrollment
	requirements []models.Requirement
	progress     map[membership]models.RequirementProgress

	users  []models.User
	tokens map[string]models.RefreshToken
	audit  []models.AuditLog

	badges       []models.Badge
	achievements []models.Achievement
	awards       []models.Award
	transactions []models.PointTransaction
	activities   []models.Activity

	jobs      map[string]models.ReportJob
	jobOrder  []string
	downloads []models.ReportDownload
	schedules []models.ScheduledReport

	settings models.Settings
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	m := &Memory{now: func() time.Time { return time.Now().UTC() }}
	m.clear()
	return m
}

// Open builds a store seeded from the fixture file at path, or the embedded defaults when path is empty.
func Open(path string) (*Memory, error) {
	fixtures, err := LoadFixtures(path)
	if err != nil {
		return nil, err
	}
	m := NewMemory()
	if err := m.Seed(fixtures); err != nil {
		return nil, err
	}
	return m, nil
}

// Reset drops every record.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
}

func (m *Memory) clear() {
	m.courses = nil
	m.enrollments = map[membership]models.Enrollment{}
	m.requirements = nil
	m.progress = map[membership]models.RequirementProgress{}
	m.users = nil
	m.tokens = map[string]models.RefreshToken{}
	m.audit = nil
	m.badges = nil
	m.achievements = nil
	m.awards = nil
	m.transactions = nil
	m.activities = nil
	m.jobs = map[string]models.ReportJob{}
	m.jobOrder = nil
	m.downloads = nil
	m.schedules = nil
	m.settings = models.Settings{}
}

func (m *Memory) userIndex(id string) int {
	for i := range m.users {
		if m.users[i].ID == id {
			return i
		}
	}
	return -1
}

// withCourseCounts fills the enrollment derived counters of a user.
func (m *Memory) withCourseCounts(u models.User) models.User {
	u.EnrolledCourses, u.CompletedCourses = 0, 0
	for key, e := range m.enrollments {
		if key.userID != u.ID {
			continue
		}
		u.EnrolledCourses++
		if e.Completed() {
			u.CompletedCourses++
		}
	}
	return u
}

func limitTail[T any](items []T, limit int) []T {
	out := make([]T, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, items[i])
	}
	return out
}
