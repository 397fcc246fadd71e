package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ReportType enumerates supported asynchronous report categories.
type ReportType string

const (
	ReportTypeUserActivity      ReportType = "user_activity"
	ReportTypeCourseCompletion  ReportType = "course_completion"
	ReportTypeMVKProgress       ReportType = "mvk_progress"
	ReportTypeAssessmentResults ReportType = "assessment_results"
	ReportTypeContentEngagement ReportType = "content_engagement"
)

// ReportTypeInfo describes a report type in the catalogue.
type ReportTypeInfo struct {
	Type        ReportType `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}

// ReportCatalogue lists the report types in display order.
var ReportCatalogue = []ReportTypeInfo{
	{ReportTypeUserActivity, "User Activity", "Login activity, enrolment counts and points per user"},
	{ReportTypeCourseCompletion, "Course Completion", "Enrolment and completion rates per course"},
	{ReportTypeMVKProgress, "Learning Paths", "Minimum viable knowledge progress per requirement"},
	{ReportTypeAssessmentResults, "Assessment Results", "Progress on assessment requirements"},
	{ReportTypeContentEngagement, "Content Engagement", "Module counts and learner reach per course"},
}

// LookupReportType returns the catalogue entry for t.
func LookupReportType(t ReportType) (ReportTypeInfo, bool) {
	for _, info := range ReportCatalogue {
		if info.Type == t {
			return info, true
		}
	}
	return ReportTypeInfo{}, false
}

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus captures background job lifecycle states.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportJob persisted background job metadata.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ReportType      `db:"type" json:"type"`
	Params       ReportJobParams `db:"params" json:"params"`
	Status       ReportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// ReportJobParams stores the requested format and dataset criteria, persisted as JSONB.
type ReportJobParams struct {
	Format   ReportFormat      `json:"format"`
	Criteria map[string]string `json:"criteria,omitempty"`
}

// Value marshals params to JSON for persistence.
func (p ReportJobParams) Value() (driver.Value, error) {
	if p.Criteria == nil {
		p.Criteria = map[string]string{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal report job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ReportJobParams) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ReportJobParams", value)
	}
	*p = ReportJobParams{}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal report job params: %w", err)
	}
	return nil
}

// GenerateReportRequest is the payload for queuing a report.
type GenerateReportRequest struct {
	Type     ReportType        `json:"type" validate:"required,oneof=user_activity course_completion mvk_progress assessment_results content_engagement"`
	Format   ReportFormat      `json:"format" validate:"omitempty,oneof=csv pdf"`
	Criteria map[string]string `json:"criteria"`
}

// ReportDownload records a finished report that was fetched.
type ReportDownload struct {
	ID           string       `db:"id" json:"id" yaml:"id"`
	JobID        string       `db:"job_id" json:"job_id" yaml:"job_id"`
	Type         ReportType   `db:"type" json:"type" yaml:"type"`
	Name         string       `db:"name" json:"name" yaml:"name"`
	Format       ReportFormat `db:"format" json:"format" yaml:"format"`
	DownloadedBy string       `db:"downloaded_by" json:"downloaded_by" yaml:"downloaded_by"`
	DownloadedAt time.Time    `db:"downloaded_at" json:"downloaded_at" yaml:"downloaded_at"`
}

// ReportFrequency is how often a scheduled report is produced.
type ReportFrequency string

const (
	FrequencyDaily   ReportFrequency = "daily"
	FrequencyWeekly  ReportFrequency = "weekly"
	FrequencyMonthly ReportFrequency = "monthly"
)

// Next returns the first run strictly after from.
func (f ReportFrequency) Next(from time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from.AddDate(0, 0, 7)
	}
}

// ScheduledReport is a recurring report delivered to recipients.
type ScheduledReport struct {
	ID         string          `db:"id" json:"id" yaml:"id"`
	Name       string          `db:"name" json:"name" yaml:"name"`
	Type       ReportType      `db:"type" json:"type" yaml:"type"`
	Format     ReportFormat    `db:"format" json:"format" yaml:"format"`
	Frequency  ReportFrequency `db:"frequency" json:"frequency" yaml:"frequency"`
	Recipients pq.StringArray  `db:"recipients" json:"recipients" yaml:"recipients"`
	NextRunAt  time.Time       `db:"next_run_at" json:"next_run_at" yaml:"next_run_at"`
	CreatedBy  string          `db:"created_by" json:"created_by" yaml:"created_by"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at" yaml:"-"`
}

// ScheduleReportRequest is the payload for creating a scheduled report.
type ScheduleReportRequest struct {
	Name       string          `json:"name" validate:"required,max=120"`
	Type       ReportType      `json:"type" validate:"required,oneof=user_activity course_completion mvk_progress assessment_results content_engagement"`
	Format     ReportFormat    `json:"format" validate:"omitempty,oneof=csv pdf"`
	Frequency  ReportFrequency `json:"frequency" validate:"required,oneof=daily weekly monthly"`
	Recipients []string        `json:"recipients" validate:"required,min=1,dive,email"`
}

// ReportJobUpdate lists the mutable job fields; nil fields are left unchanged.
type ReportJobUpdate struct {
	Status       *ReportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}
