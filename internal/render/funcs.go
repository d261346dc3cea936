package render

import (
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"property-search/internal/models"
)

// Yen formats an amount with digit grouping: 100000 -> "100,000 円".
func Yen(amount int) string {
	return humanize.Comma(int64(amount)) + " 円"
}

// OptionalYen formats deposit-like amounts, "無し" when absent.
func OptionalYen(amount *int) string {
	if amount == nil || *amount <= 0 {
		return "無し"
	}
	return Yen(*amount)
}

// ManagementFee returns "(管理費: 5,000 円)", or "" without a fee.
func ManagementFee(fee *int) string {
	if fee == nil || *fee <= 0 {
		return ""
	}
	return "(管理費: " + Yen(*fee) + ")"
}

// Area formats square meters the way a plain number prints: 25 -> "25 m²", 40.5 -> "40.5 m²".
func Area(sqm float64) string {
	return strconv.FormatFloat(sqm, 'f', -1, 64) + " m²"
}

// Distance formats a parking distance in km, "不明" when unknown.
func Distance(km *float64) string {
	if km == nil || *km == 0 {
		return "不明"
	}
	return fmt.Sprintf("%.2f km", *km)
}

// OrUnknown dereferences s, "不明" when nil or empty.
func OrUnknown(s *string) string {
	if s == nil || *s == "" {
		return "不明"
	}
	return *s
}

// PlanOrNone is the internet plan label, "情報なし" when empty.
func PlanOrNone(plan string) string {
	if plan == "" {
		return "情報なし"
	}
	return plan
}

// BuildingAge renders "10 年 (2015 年築)".
func BuildingAge(p models.Property, now time.Time) string {
	return fmt.Sprintf("%d 年 (%d 年築)", p.BuildingAge(now), p.BuiltYear)
}

// FloorLabel renders "3 階 / 10 階建", or "3 階" without the building height.
func FloorLabel(p models.Property) string {
	if p.TotalFloors != nil && *p.TotalFloors > 0 {
		return fmt.Sprintf("%d 階 / %d 階建", p.Floor, *p.TotalFloors)
	}
	return fmt.Sprintf("%d 階", p.Floor)
}

// YesNo renders a flag as はい / いいえ.
func YesNo(b bool) string {
	if b {
		return "はい"
	}
	return "いいえ"
}

// Date renders a timestamp as 2025/4/1, or "" for the zero time.
func Date(ts models.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format("2006/1/2")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var funcs = template.FuncMap{
	"yen":           Yen,
	"optionalYen":   OptionalYen,
	"managementFee": ManagementFee,
	"area":          Area,
	"distance":      Distance,
	"orUnknown":     OrUnknown,
	"planOrNone":    PlanOrNone,
	"buildingAge":   BuildingAge,
	"floorLabel":    FloorLabel,
	"yesNo":         YesNo,
	"date":          Date,
	"deref":         deref,
}
