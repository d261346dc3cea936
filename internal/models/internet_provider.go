package models

// InternetProvider holds the surveyed fiber plans for one property.
// A missing record (nil pointer) means the property has not been surveyed yet.
type InternetProvider struct {
	ID           int64     `json:"id"`
	PropertyID   int64     `json:"property_id"`
	FletsPlan    *string   `json:"flets_plan"`
	AuHikariPlan *string   `json:"au_hikari_plan"`
	NuroPlan     *string   `json:"nuro_plan"`
	JcomPlan     *string   `json:"jcom_plan"`
	CheckedAt    Timestamp `json:"checked_at"`
}

// CarrierPlan is one carrier row on the detail page.
type CarrierPlan struct {
	Carrier string
	Plan    string // empty when the carrier has no plan on record
}

// Plans returns the four carriers in display order.
func (ip *InternetProvider) Plans() []CarrierPlan {
	return []CarrierPlan{
		{Carrier: "フレッツ光", Plan: deref(ip.FletsPlan)},
		{Carrier: "auひかり", Plan: deref(ip.AuHikariPlan)},
		{Carrier: "NURO光", Plan: deref(ip.NuroPlan)},
		{Carrier: "J:COM", Plan: deref(ip.JcomPlan)},
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
