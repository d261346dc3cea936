package models

import "encoding/json"

// PropertyDetail is the aggregate shown on the detail page.
// InternetProvider is nil when not surveyed; BikeParkings is never nil.
type PropertyDetail struct {
	Property
	InternetProvider *InternetProvider `json:"internet_provider"`
	BikeParkings     []BikeParking     `json:"bike_parkings"`
}

// UnmarshalJSON decodes the embedded Property alongside the aggregate fields;
// without it Property's own decoder would be promoted and swallow them.
func (d *PropertyDetail) UnmarshalJSON(data []byte) error {
	var p Property
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var rest struct {
		InternetProvider *InternetProvider `json:"internet_provider"`
		BikeParkings     []BikeParking     `json:"bike_parkings"`
	}
	if err := json.Unmarshal(data, &rest); err != nil {
		return err
	}
	d.Property = p
	d.InternetProvider = rest.InternetProvider
	d.BikeParkings = rest.BikeParkings
	if d.BikeParkings == nil {
		d.BikeParkings = []BikeParking{}
	}
	return nil
}
