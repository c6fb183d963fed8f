package models

import "time"

// Truck is a refrigerated truck of the fleet
type Truck struct {
	ID           uint           `json:"_id" gorm:"primaryKey;autoIncrement:false" bson:"_id"`
	Plates       string         `json:"plates" gorm:"uniqueIndex" bson:"plates"`
	Status       ResourceStatus `json:"status" bson:"status"`
	LoadCapacity float64        `json:"loadCapacity" bson:"loadCapacity"`
	AdminID      uint           `json:"IDAdmin" bson:"IDAdmin"`
	Brand        string         `json:"brand" bson:"brand"`
	Model        string         `json:"model" bson:"model"`
}

// TruckAssignment binds a driver to a truck; an open assignment has no end date
type TruckAssignment struct {
	ID        uint       `json:"-" gorm:"primaryKey" bson:"-"`
	DriverID  uint       `json:"IDDriver" gorm:"index" bson:"IDDriver"`
	TruckID   uint       `json:"IDTruck" bson:"IDTruck"`
	DateStart time.Time  `json:"dateStart" bson:"dateStart"`
	DateEnd   *time.Time `json:"dateEnd,omitempty" bson:"dateEnd,omitempty"`
}

// TableName matches the collection name used by the mobile backend
func (TruckAssignment) TableName() string {
	return "user_truck"
}

// IsActive reports whether the assignment is still open
func (a *TruckAssignment) IsActive() bool {
	return a.DateEnd == nil
}

// Box is an optional refrigeration unit that travels with a truck
type Box struct {
	ID     uint           `json:"_id" gorm:"primaryKey;autoIncrement:false" bson:"_id"`
	Label  string         `json:"label" bson:"label"`
	Status ResourceStatus `json:"status" bson:"status"`
}
