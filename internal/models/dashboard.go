package models

import "time"

// AdminDashboard is the overview shown to administrators.
type AdminDashboard struct {
	TotalUsers       int            `json:"total_users"`
	TotalCourses     int            `json:"total_courses"`
	Certifications   int            `json:"certifications"`
	UserSummary      map[string]int `json:"user_summary"`
	UsersByRole      map[string]int `json:"users_by_role"`
	RecentActivities []Activity     `json:"recent_activities"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// InstructorDashboard is the overview shown to instructors.
type InstructorDashboard struct {
	TotalLearners    int                `json:"total_learners"`
	ActiveLearners   int                `json:"active_learners"`
	AwardsGiven      int                `json:"awards_given"`
	CourseSummary    map[string]int     `json:"course_summary"`
	TopLearners      []LeaderboardEntry `json:"top_learners"`
	RecentActivities []Activity         `json:"recent_activities"`
	GeneratedAt      time.Time          `json:"generated_at"`
}

// LearnerDashboard is the personal overview shown to learners.
type LearnerDashboard struct {
	Stats              LearnerStats      `json:"stats"`
	CoursesInProgress  []Course          `json:"courses_in_progress"`
	CourseSummary      map[string]int    `json:"course_summary"`
	MVKProgress        []CollegeProgress `json:"mvk_progress"`
	MVKSummary         map[string]int    `json:"mvk_summary"`
	RecentAchievements []Award           `json:"recent_achievements"`
	GeneratedAt        time.Time         `json:"generated_at"`
}

// SystemMetrics represents system level figures captured from instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	ReportsFinished          uint64    `json:"reports_finished"`
	ReportsFailed            uint64    `json:"reports_failed"`
	FilterEvaluations        uint64    `json:"filter_evaluations"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
