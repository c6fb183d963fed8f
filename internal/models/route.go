package models

import "time"

// GeoPoint is a GeoJSON point, coordinates are [lng, lat]
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from latitude and longitude
func NewGeoPoint(lat, lng float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

// Route is an origin/destination pair with the cold-chain limits trips on it must respect
type Route struct {
	ID          uint     `json:"_id" gorm:"primaryKey;autoIncrement:false" bson:"_id"`
	Name        string   `json:"name" bson:"name"`
	MaxTemp     float64  `json:"maxTemp" bson:"maxTemp"`
	MinTemp     float64  `json:"minTemp" bson:"minTemp"`
	MaxHum      float64  `json:"maxHum" bson:"maxHum"`
	MinHum      float64  `json:"minHum" bson:"minHum"`
	Origin      GeoPoint `json:"origin" gorm:"serializer:json" bson:"origin"`
	Destination GeoPoint `json:"destination" gorm:"serializer:json" bson:"destination"`
	AdminID     uint     `json:"IDAdmin" bson:"IDAdmin"`
}

// CargoType describes what a trip transports
type CargoType struct {
	ID          uint   `json:"_id" gorm:"primaryKey;autoIncrement:false" bson:"_id"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description" bson:"description"`
}

// Alert is a kind of cold-chain alarm a trip reading can point at
type Alert struct {
	ID          uint   `json:"_id" gorm:"primaryKey;autoIncrement:false" bson:"_id"`
	Type        string `json:"type" bson:"type"`
	Description string `json:"description" bson:"description"`
}

// Tracking is a position reported by the driver's device during a trip
type Tracking struct {
	ID          string    `json:"_id" gorm:"primaryKey" bson:"_id"`
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" gorm:"serializer:json" bson:"coordinates"`
	DateTime    time.Time `json:"dateTime" bson:"dateTime"`
	TripID      uint      `json:"IDTrip" gorm:"index" bson:"IDTrip"`
}

// TableName keeps the singular collection name
func (Tracking) TableName() string {
	return "tracking"
}
