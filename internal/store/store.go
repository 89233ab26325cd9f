// ABOUTME: Data types and errors for the food-record backing store.
// ABOUTME: Defines FoodRecord and PhysInfo rows persisted in SQLite.

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// FoodRecord is one logged food intake for a user.
type FoodRecord struct {
	ID         string
	UserID     string
	FoodName   string
	Calories   float64
	RecordedAt time.Time
}

// PhysInfo is a user's body profile, collected during onboarding and used by
// the slow path for calorie budgeting.
type PhysInfo struct {
	UserID    string
	Gender    string
	Age       int
	HeightCM  float64
	WeightKG  float64
	Allergies string
	UpdatedAt time.Time
}
