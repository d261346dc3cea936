package models

// BikeParking is a motorcycle parking facility near a property.
type BikeParking struct {
	ID          int64     `json:"id"`
	PropertyID  int64     `json:"property_id"`
	ParkingName string    `json:"parking_name"`
	Address     string    `json:"address"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	Distance    *float64  `json:"distance"` // km
	Fee         *string   `json:"fee"`
	ParkingURL  string    `json:"parking_url"`
	CreatedAt   Timestamp `json:"created_at"`
}
