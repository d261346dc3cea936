package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Property mirrors a property record served by the backend.
// The front end never mutates it; each view holds a read-only copy.
type Property struct {
	// 基本情報
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	// 最寄り駅
	Station        string `json:"station"`
	WalkingMinutes int    `json:"walking_minutes"`

	// 賃料・初期費用 (円)
	Rent          int  `json:"rent"`
	ManagementFee *int `json:"management_fee"`
	Deposit       *int `json:"deposit"`
	KeyMoney      *int `json:"key_money"`

	// 物件スペック
	FloorPlan         string  `json:"floor_plan"`
	SizeSqm           float64 `json:"size_sqm"`
	BuildingStructure string  `json:"building_structure"`
	BuiltYear         int     `json:"built_year"`
	TotalFloors       *int    `json:"total_floors"`
	Floor             int     `json:"floor"`
	CornerRoom        bool    `json:"corner_room"`

	// ステータス・掲載元
	Status       string  `json:"status"`
	SiteURL      string  `json:"site_url"`
	MainImageURL *string `json:"main_image_url"`

	// タイムスタンプ
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// UnmarshalJSON は金額系の任意項目を正規化する (0 以下は未設定扱い)
func (p *Property) UnmarshalJSON(data []byte) error {
	type alias Property
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Property(raw)
	p.ManagementFee = positiveOrNil(p.ManagementFee)
	p.Deposit = positiveOrNil(p.Deposit)
	p.KeyMoney = positiveOrNil(p.KeyMoney)
	return nil
}

// HasCoordinates は緯度経度が両方揃っているかどうか
func (p *Property) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// MapURL returns a Google Maps link for the property, or "" without coordinates.
func (p *Property) MapURL() string {
	if !p.HasCoordinates() {
		return ""
	}
	return fmt.Sprintf("https://maps.google.com/?q=%g,%g", *p.Latitude, *p.Longitude)
}

// BuildingAge は築年数 (now 時点)
func (p *Property) BuildingAge(now time.Time) int {
	if p.BuiltYear <= 0 {
		return 0
	}
	age := now.Year() - p.BuiltYear
	if age < 0 {
		return 0
	}
	return age
}

func positiveOrNil(v *int) *int {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}
