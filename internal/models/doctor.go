package models

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Weekday names as stored in availability records, lowercase.
var Weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

var weekdaySet = map[string]bool{
	"sunday": true, "monday": true, "tuesday": true, "wednesday": true,
	"thursday": true, "friday": true, "saturday": true,
}

var timeOfDayRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

const (
	MinSlotDuration = 10
	MaxSlotDuration = 240
)

// Availability is a doctor's recurring weekly template.
type Availability struct {
	Days         []string `bson:"days" json:"days"`
	StartTime    string   `bson:"startTime" json:"startTime"` // HH:mm local time of day
	EndTime      string   `bson:"endTime" json:"endTime"`
	SlotDuration int      `bson:"slotDuration" json:"slotDuration"` // minutes
}

// DefaultAvailability matches the template new doctor profiles start with.
func DefaultAvailability() Availability {
	return Availability{
		Days:         []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		StartTime:    "09:00",
		EndTime:      "17:00",
		SlotDuration: 30,
	}
}

// Validate rejects the availability record if any invariant is broken:
// unknown weekday, malformed HH:mm, end not after start, or a slot duration
// outside bounds or longer than the working window.
func (a Availability) Validate() error {
	if len(a.Days) == 0 {
		return errors.New("at least one working day is required")
	}
	for _, d := range a.Days {
		if !weekdaySet[d] {
			return fmt.Errorf("invalid day: %s", d)
		}
	}
	start, err := a.ParseStart()
	if err != nil {
		return err
	}
	end, err := a.ParseEnd()
	if err != nil {
		return err
	}
	if !end.After(start) {
		return errors.New("endTime must be after startTime")
	}
	if a.SlotDuration < MinSlotDuration || a.SlotDuration > MaxSlotDuration {
		return fmt.Errorf("slotDuration must be between %d and %d minutes", MinSlotDuration, MaxSlotDuration)
	}
	if time.Duration(a.SlotDuration)*time.Minute > end.Sub(start) {
		return errors.New("slotDuration exceeds the working window")
	}
	return nil
}

// ParseStart parses the HH:mm start time as a minute offset anchored to the
// zero date.
func (a Availability) ParseStart() (time.Time, error) { return parseTimeOfDay(a.StartTime) }

// ParseEnd parses the HH:mm end time.
func (a Availability) ParseEnd() (time.Time, error) { return parseTimeOfDay(a.EndTime) }

func parseTimeOfDay(s string) (time.Time, error) {
	if !timeOfDayRe.MatchString(s) {
		return time.Time{}, fmt.Errorf("invalid time format %q, use HH:mm", s)
	}
	return time.Parse("15:04", s)
}

// DoctorProfile extends a doctor User with clinic-facing details and the
// weekly availability template.
type DoctorProfile struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	DepartmentID    primitive.ObjectID `bson:"departmentId" json:"departmentId"`
	Qualifications  string             `bson:"qualifications" json:"qualifications"`
	ExperienceYears int                `bson:"experienceYears" json:"experienceYears"`
	ConsultationFee float64            `bson:"consultationFee" json:"consultationFee"`
	Availability    Availability       `bson:"availability" json:"availability"`
	IsActive        bool               `bson:"isActive" json:"isActive"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NewDoctorProfile validates and builds an active profile with the default
// weekly template.
func NewDoctorProfile(userID, departmentID primitive.ObjectID, qualifications string, experienceYears int, fee float64) (*DoctorProfile, error) {
	if userID.IsZero() {
		return nil, errors.New("userId is required")
	}
	if departmentID.IsZero() {
		return nil, errors.New("departmentId is required")
	}
	if experienceYears < 0 || experienceYears > 100 {
		return nil, errors.New("experienceYears out of range")
	}
	if fee < 0 {
		return nil, errors.New("consultationFee cannot be negative")
	}
	now := time.Now().UTC()
	return &DoctorProfile{
		UserID:          userID,
		DepartmentID:    departmentID,
		Qualifications:  qualifications,
		ExperienceYears: experienceYears,
		ConsultationFee: RoundFee(fee),
		Availability:    DefaultAvailability(),
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
