package models

// TripStatus is the lifecycle state of a trip
type TripStatus string

// Trip lifecycle states
const (
	TripStatusScheduled TripStatus = "Scheduled"
	TripStatusOnTrip    TripStatus = "OnTrip"
	TripStatusFinished  TripStatus = "Finished"
	TripStatusCanceled  TripStatus = "Canceled"
)

// ResourceStatus is shared by drivers, trucks and boxes
type ResourceStatus string

// Resource states. Maintenance only applies to trucks.
const (
	StatusAvailable   ResourceStatus = "Available"
	StatusOnTrip      ResourceStatus = "OnTrip"
	StatusInactive    ResourceStatus = "Inactive"
	StatusMaintenance ResourceStatus = "Maintenance"
)

// IsBusy reports whether the resource is currently bound to a trip
func (s ResourceStatus) IsBusy() bool {
	return s == StatusOnTrip
}
