package models

import "time"

// Trip is a scheduled transport job linking a driver, truck, optional box, route and cargo type.
// JSON names follow the ones the mobile client already consumes.
type Trip struct {
	ID                     uint       `json:"_id" gorm:"primaryKey;autoIncrement:false" bson:"_id"`
	ScheduledDepartureDate time.Time  `json:"scheduledDepartureDate" bson:"scheduledDepartureDate"`
	ScheduledArrivalDate   time.Time  `json:"scheduledArrivalDate" gorm:"index" bson:"scheduledArrivalDate"`
	EstimatedDistance      float64    `json:"estimatedDistance" bson:"estimatedDistance"`
	Status                 TripStatus `json:"status" gorm:"index" bson:"status"`

	DriverID    uint  `json:"IDDriver" gorm:"index" bson:"IDDriver"`
	AdminID     uint  `json:"IDAdmin" bson:"IDAdmin"`
	TruckID     uint  `json:"IDTruck" gorm:"index" bson:"IDTruck"`
	BoxID       *uint `json:"IDBox,omitempty" bson:"IDBox,omitempty"`
	RouteID     uint  `json:"IDRute" bson:"IDRute"`
	CargoTypeID uint  `json:"IDCargoType" bson:"IDCargoType"`

	Alerts []AlertReading `json:"alerts" gorm:"foreignKey:TripID;constraint:OnDelete:CASCADE" bson:"alerts"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// HasBox reports whether the trip carries a refrigeration box
func (t *Trip) HasBox() bool {
	return t.BoxID != nil
}

// IsExpired reports whether a scheduled trip has passed its arrival date
func (t *Trip) IsExpired(now time.Time) bool {
	return t.Status == TripStatusScheduled && t.ScheduledArrivalDate.Before(now)
}

// AlertReading is a temperature/humidity sample recorded during a trip
type AlertReading struct {
	ID          uint      `json:"-" gorm:"primaryKey" bson:"-"`
	TripID      uint      `json:"-" gorm:"index" bson:"-"`
	AlertID     *uint     `json:"IDAlert,omitempty" gorm:"index" bson:"IDAlert,omitempty"` // Alert.ID
	DateTime    time.Time `json:"dateTime" bson:"dateTime"`
	Temperature *float64  `json:"temperature,omitempty" bson:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty" bson:"humidity,omitempty"`
}

// TableName keeps readings apart from alert type definitions
func (AlertReading) TableName() string {
	return "trip_alerts"
}

// TripFilter narrows trip listings
type TripFilter struct {
	DriverID        *uint
	TruckID         *uint
	ExcludeStatuses []TripStatus
	Ascending       bool // by scheduled departure
}
