// Package shipping estimates delivery fees for Chilean addresses.
package shipping

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	ZoneFree     = "free"
	ZoneNearby   = "nearby"
	ZoneSantiago = "santiago"
	ZoneRegions  = "regions"
	ZoneSameDay  = "same_day"
	ZoneLocal    = "local"
	ZoneManual   = "manual"
)

const (
	CostNearby   int64 = 2000
	CostSantiago int64 = 5000
	CostRegions  int64 = 8000
	CostSameDay  int64 = 3000
	CostLocal    int64 = 5000
)

// Estimate is a fee in whole pesos plus the customer-facing explanation.
// Zone manual means the fee is still to be quoted.
type Estimate struct {
	Cost       int64    `json:"cost"`
	Message    string   `json:"message"`
	Zone       string   `json:"zone"`
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

// Normalize lower-cases, trims and strips diacritics so "Peñalolén" matches "penalolen".
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

func isMetropolitan(region string) bool {
	return strings.Contains(region, "metropolitana") || strings.Contains(region, "santiago")
}

// EstimateByComune applies the flat rule table over a comune/city and region.
func EstimateByComune(comune, region string) Estimate {
	c, r := Normalize(comune), Normalize(region)

	if !isMetropolitan(r) {
		return Estimate{Cost: CostRegions, Zone: ZoneRegions, Message: "Envío a regiones: $8.000"}
	}
	switch {
	case strings.Contains(c, "valledor"):
		return Estimate{Cost: 0, Zone: ZoneFree, Message: "¡Envío gratis! Estás en nuestra zona de cobertura."}
	case strings.Contains(c, "cisterna"):
		return Estimate{Cost: CostNearby, Zone: ZoneNearby, Message: "Envío cercano: $2.000"}
	default:
		return Estimate{Cost: CostSantiago, Zone: ZoneSantiago, Message: "Envío en Santiago: $5.000"}
	}
}
