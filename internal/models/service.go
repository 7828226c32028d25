package models

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Service is a bookable catalog entry (consultation, checkup, ...) belonging
// to a department.
type Service struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name"`
	Description     string             `bson:"description" json:"description"`
	Price           float64            `bson:"price" json:"price"`
	DurationMinutes int                `bson:"durationMinutes" json:"durationMinutes"`
	DepartmentID    primitive.ObjectID `bson:"departmentId" json:"departmentId"`
	IsActive        bool               `bson:"isActive" json:"isActive"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NewService validates and builds an active catalog entry. Price rounding
// happens here rather than in a persistence hook.
func NewService(name, description string, price float64, durationMinutes int, departmentID primitive.ObjectID) (*Service, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("name is required")
	}
	if len(name) > 200 {
		return nil, errors.New("name too long")
	}
	if price < 0 {
		return nil, errors.New("price cannot be negative")
	}
	if departmentID.IsZero() {
		return nil, errors.New("departmentId is required")
	}
	if durationMinutes == 0 {
		durationMinutes = 30
	}
	if durationMinutes < MinDurationMinutes || durationMinutes > MaxDurationMinutes {
		return nil, errors.New("durationMinutes out of range")
	}
	now := time.Now().UTC()
	return &Service{
		Name:            name,
		Description:     strings.TrimSpace(description),
		Price:           RoundFee(price),
		DurationMinutes: durationMinutes,
		DepartmentID:    departmentID,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
