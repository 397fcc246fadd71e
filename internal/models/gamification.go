package models

import "time"

// BadgeTier ranks badges.
type BadgeTier string

const (
	BadgeTierBronze   BadgeTier = "bronze"
	BadgeTierSilver   BadgeTier = "silver"
	BadgeTierGold     BadgeTier = "gold"
	BadgeTierPlatinum BadgeTier = "platinum"
)

// Badge is an awardable recognition.
type Badge struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Category    string    `json:"category" yaml:"category"`
	Tier        BadgeTier `json:"tier" yaml:"tier"`
	Points      int       `json:"points" yaml:"points"`
	ImageURL    string    `json:"image_url,omitempty" yaml:"image_url"`
	Active      bool      `json:"active" yaml:"active"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// Achievement is a milestone unlocked manually or by a trigger.
type Achievement struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Trigger     string    `json:"trigger" yaml:"trigger"`
	Mode        string    `json:"mode" yaml:"mode"`
	Points      int       `json:"points" yaml:"points"`
	Active      bool      `json:"active" yaml:"active"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// AwardType enumerates what an award grants.
type AwardType string

const (
	AwardTypeBadge       AwardType = "badge"
	AwardTypeAchievement AwardType = "achievement"
	AwardTypePoints      AwardType = "points"
)

// Award records a badge, achievement or bonus points granted to a learner.
type Award struct {
	ID        string    `json:"id" yaml:"id"`
	UserID    string    `json:"user_id" yaml:"user_id"`
	Type      AwardType `json:"type" yaml:"type"`
	ItemID    string    `json:"item_id,omitempty" yaml:"item_id"`
	ItemName  string    `json:"item_name,omitempty" yaml:"item_name"`
	Points    int       `json:"points" yaml:"points"`
	Reason    string    `json:"reason,omitempty" yaml:"reason"`
	AwardedBy string    `json:"awarded_by" yaml:"awarded_by"`
	AwardedAt time.Time `json:"awarded_at" yaml:"awarded_at"`
}

// AwardRequest is the payload for granting an award.
type AwardRequest struct {
	UserID string    `json:"user_id" validate:"required"`
	Type   AwardType `json:"type" validate:"required,oneof=badge achievement points"`
	ItemID string    `json:"item_id" validate:"required_unless=Type points"`
	Points int       `json:"points" validate:"omitempty,min=1,max=10000"`
	Reason string    `json:"reason" validate:"max=255"`
}

// TransactionKind distinguishes credited from spent points.
type TransactionKind string

const (
	TransactionEarned TransactionKind = "earned"
	TransactionSpent  TransactionKind = "spent"
)

// PointTransaction is a single movement on a learner's points balance.
type PointTransaction struct {
	ID          string          `json:"id" yaml:"id"`
	UserID      string          `json:"user_id" yaml:"user_id"`
	Kind        TransactionKind `json:"kind" yaml:"kind"`
	Points      int             `json:"points" yaml:"points"`
	Description string          `json:"description" yaml:"description"`
	CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
}

// Activity is a line in the recent gamification activity feed.
type Activity struct {
	ID        string    `json:"id" yaml:"id"`
	UserID    string    `json:"user_id" yaml:"user_id"`
	Kind      AwardType `json:"kind" yaml:"kind"`
	Message   string    `json:"message" yaml:"message"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// LearnerStats summarizes a learner's points and level.
type LearnerStats struct {
	UserID            string `json:"user_id"`
	TotalPoints       int    `json:"total_points"`
	AvailablePoints   int    `json:"available_points"`
	SpentPoints       int    `json:"spent_points"`
	Level             int    `json:"level"`
	LevelName         string `json:"level_name"`
	PointsToNextLevel int    `json:"points_to_next_level"`
	LevelProgress     int    `json:"level_progress"`
	Badges            int    `json:"badges"`
	Achievements      int    `json:"achievements"`
}

// LeaderboardEntry ranks a learner by points.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Level       int    `json:"level"`
	TotalPoints int    `json:"total_points"`
	Badges      int    `json:"badges"`
}
