package models

import "time"

// User roles
const (
	RoleAdmin  = "admin"
	RoleDriver = "driver"
)

// User is an admin or a driver. Drivers carry the availability status the trip coordinator maintains.
type User struct {
	ID               uint           `json:"_id" gorm:"primaryKey;autoIncrement:false" bson:"_id"`
	Name             string         `json:"name" bson:"name"`
	LastName         string         `json:"lastName" bson:"lastName"`
	SecondLastName   string         `json:"secondLastName" bson:"secondLastName"`
	Email            string         `json:"email" gorm:"uniqueIndex" bson:"email"`
	Password         string         `json:"-" bson:"password"` // bcrypt hash
	PhoneNumber      string         `json:"phoneNumber" bson:"phoneNumber"`
	Status           ResourceStatus `json:"status" bson:"status"`
	Role             string         `json:"role" bson:"role"`
	RegistrationDate time.Time      `json:"registrationDate" bson:"registrationDate"`
	License          string         `json:"license" bson:"license"`
	ProfilePicture   string         `json:"profilePicture" bson:"profilePicture"`
}

// IsDriver reports whether the user drives trucks. Only drivers get trip messages.
func (u *User) IsDriver() bool {
	return u.Role == RoleDriver
}

// UserRegistration is the payload for creating a user
type UserRegistration struct {
	ID               *uint          `json:"_id"`
	Name             string         `json:"name"`
	LastName         string         `json:"lastName"`
	SecondLastName   string         `json:"secondLastName"`
	Email            string         `json:"email"`
	Password         string         `json:"password"`
	PhoneNumber      string         `json:"phoneNumber"`
	Status           ResourceStatus `json:"status"`
	Role             string         `json:"role"`
	RegistrationDate string         `json:"registrationDate"`
	License          string         `json:"license"`
	ProfilePicture   string         `json:"profilePicture"`
}
