package store

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/ace-lms-api/internal/models"
)

//go:embed fixtures/default.yaml
var defaultFixtures []byte

// FixtureUser is a user entry with a plaintext password hashed during seeding.
type FixtureUser struct {
	models.User `yaml:",inline"`
	Password    string `yaml:"password"`
}

// Fixtures is the seed document for a Memory store.
type Fixtures struct {
	Courses             []models.Course              `yaml:"courses"`
	Requirements        []models.Requirement         `yaml:"requirements"`
	Users               []FixtureUser                `yaml:"users"`
	Enrollments         []models.Enrollment          `yaml:"enrollments"`
	RequirementProgress []models.RequirementProgress `yaml:"requirement_progress"`
	Badges              []models.Badge               `yaml:"badges"`
	Achievements        []models.Achievement         `yaml:"achievements"`
	Awards              []models.Award               `yaml:"awards"`
	Transactions        []models.PointTransaction    `yaml:"transactions"`
	Activities          []models.Activity            `yaml:"activities"`
	ScheduledReports    []models.ScheduledReport     `yaml:"scheduled_reports"`
	Downloads           []models.ReportDownload      `yaml:"downloads"`
	Settings            models.Settings              `yaml:"settings"`
}

// LoadFixtures reads the YAML document at path. An empty path selects the embedded defaults.
func LoadFixtures(path string) (Fixtures, error) {
	raw := defaultFixtures
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Fixtures{}, fmt.Errorf("read fixtures: %w", err)
		}
		raw = data
	}
	return ParseFixtures(raw)
}

// ParseFixtures decodes a YAML fixture document. Unknown keys are rejected.
func ParseFixtures(raw []byte) (Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Fixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}
	return f, nil
}

// Seed replaces the store contents with fixtures. References between records are checked first
// and nothing is written when any check fails.
func (m *Memory) Seed(f Fixtures) error {
	if err := f.validate(); err != nil {
		return err
	}

	now := m.now()
	users := make([]models.User, 0, len(f.Users))
	for _, fu := range f.Users {
		u := fu.User
		if fu.Password != "" {
			// demo accounts only
			hash, err := bcrypt.GenerateFromPassword([]byte(fu.Password), bcrypt.MinCost)
			if err != nil {
				return fmt.Errorf("hash password for %s: %w", u.Email, err)
			}
			u.PasswordHash = string(hash)
		}
		if u.Status == "" {
			u.Status = models.UserStatusActive
		}
		if u.Level < 1 {
			u.Level = 1
		}
		u.CreatedAt, u.UpdatedAt = now, now
		users = append(users, u)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()

	for _, c := range f.Courses {
		c.CreatedAt = now
		c.Progress, c.IsEnrolled = 0, false
		m.courses = append(m.courses, c)
	}
	for _, r := range f.Requirements {
		r.CreatedAt = now
		m.requirements = append(m.requirements, r)
	}
	m.users = users
	for _, e := range f.Enrollments {
		e.EnrolledAt, e.UpdatedAt = now, now
		if e.Completed() {
			e.CompletedAt = &now
		}
		m.enrollments[membership{e.UserID, e.CourseID}] = e
	}
	for _, p := range f.RequirementProgress {
		p.Status = models.StatusForProgress(p.Progress)
		if p.Status != models.RequirementCompleted {
			p.CompletedDate = nil
		} else if p.CompletedDate == nil {
			p.CompletedDate = &now
		}
		p.UpdatedAt = now
		m.progress[membership{p.UserID, p.RequirementID}] = p
	}
	for _, b := range f.Badges {
		b.CreatedAt = now
		m.badges = append(m.badges, b)
	}
	for _, a := range f.Achievements {
		a.CreatedAt = now
		m.achievements = append(m.achievements, a)
	}
	m.awards = withIDs(f.Awards, func(a *models.Award) *string { return &a.ID })
	m.transactions = withIDs(f.Transactions, func(t *models.PointTransaction) *string { return &t.ID })
	m.activities = withIDs(f.Activities, func(a *models.Activity) *string { return &a.ID })
	m.downloads = withIDs(f.Downloads, func(d *models.ReportDownload) *string { return &d.ID })
	for _, s := range withIDs(f.ScheduledReports, func(s *models.ScheduledReport) *string { return &s.ID }) {
		s.CreatedAt = now
		if s.Format == "" {
			s.Format = models.ReportFormatCSV
		}
		m.schedules = append(m.schedules, s)
	}
	m.settings = f.Settings
	return nil
}

func withIDs[T any](items []T, id func(*T) *string) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if p := id(&item); *p == "" {
			*p = uuid.NewString()
		}
		out = append(out, item)
	}
	return out
}

func (f Fixtures) validate() error {
	courses := map[string]bool{}
	for _, c := range f.Courses {
		if c.ID == "" || courses[c.ID] {
			return fmt.Errorf("fixtures: course %q: %w", c.ID, ErrDuplicate)
		}
		courses[c.ID] = true
	}
	requirements := map[string]bool{}
	for _, r := range f.Requirements {
		if r.ID == "" || requirements[r.ID] {
			return fmt.Errorf("fixtures: requirement %q: %w", r.ID, ErrDuplicate)
		}
		requirements[r.ID] = true
	}
	users := map[string]bool{}
	emails := map[string]bool{}
	for _, u := range f.Users {
		email := strings.ToLower(u.Email)
		if u.ID == "" || users[u.ID] || emails[email] {
			return fmt.Errorf("fixtures: user %q: %w", u.ID, ErrDuplicate)
		}
		users[u.ID] = true
		emails[email] = true
	}
	for _, e := range f.Enrollments {
		if !users[e.UserID] || !courses[e.CourseID] {
			return fmt.Errorf("fixtures: enrollment %s/%s references an unknown record", e.UserID, e.CourseID)
		}
		if e.Progress < 0 || e.Progress > 100 {
			return fmt.Errorf("fixtures: enrollment %s/%s progress %d out of range", e.UserID, e.CourseID, e.Progress)
		}
	}
	for _, p := range f.RequirementProgress {
		if !users[p.UserID] || !requirements[p.RequirementID] {
			return fmt.Errorf("fixtures: progress %s/%s references an unknown record", p.UserID, p.RequirementID)
		}
		if p.Progress < 0 || p.Progress > 100 {
			return fmt.Errorf("fixtures: progress %s/%s value %d out of range", p.UserID, p.RequirementID, p.Progress)
		}
	}
	for _, a := range f.Awards {
		if !users[a.UserID] {
			return fmt.Errorf("fixtures: award %q references unknown user %q", a.ID, a.UserID)
		}
	}
	return nil
}
