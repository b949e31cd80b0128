package shipping

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

const (
	earthRadiusKm = 6371.0
	// LocalRadiusKm is the courier radius around the store.
	LocalRadiusKm = 30.0
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// Origin is the store in La Cisterna, Santiago.
var Origin = Point{Lat: -33.5327, Lon: -70.6656}

// Geocoder resolves a free-text address. ok is false when nothing matched.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (p Point, ok bool, err error)
}

// HaversineKm returns the great-circle distance between a and b.
func HaversineKm(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceEstimator prices by distance from Origin. Geocoding is attempted
// once; any failure degrades to a manual quote instead of an error.
type DistanceEstimator struct {
	geocoder Geocoder
	logger   *zap.Logger
}

func NewDistanceEstimator(geocoder Geocoder, logger *zap.Logger) *DistanceEstimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DistanceEstimator{geocoder: geocoder, logger: logger.Named("shipping")}
}

func (e *DistanceEstimator) Estimate(ctx context.Context, address, comune string) Estimate {
	if strings.Contains(Normalize(comune), "cisterna") {
		zero := 0.0
		return Estimate{
			Cost:       CostSameDay,
			Zone:       ZoneSameDay,
			Message:    "📍 Envío a La Cisterna - Despacho en el día",
			DistanceKm: &zero,
		}
	}

	query := strings.Join(nonEmpty(address, comune, "Chile"), ", ")
	point, ok, err := e.geocoder.Geocode(ctx, query)
	if err != nil {
		e.logger.Warn("geocoding failed", zap.String("query", query), zap.Error(err))
		return Estimate{Zone: ZoneManual, Message: "⚠️ Error al calcular envío. Te contactaremos para coordinar."}
	}
	if !ok {
		return Estimate{
			Zone:    ZoneManual,
			Message: "⚠️ No pudimos calcular el envío automáticamente. Te contactaremos para coordinar con Starken.",
		}
	}

	km := HaversineKm(Origin, point)
	rounded := math.Round(km)
	if km <= LocalRadiusKm {
		return Estimate{
			Cost:       CostLocal,
			Zone:       ZoneLocal,
			Message:    fmt.Sprintf("🚚 Envío a %.0fkm de distancia - Despacho en 24-48 horas", rounded),
			DistanceKm: &km,
		}
	}
	return Estimate{
		Zone:       ZoneManual,
		Message:    fmt.Sprintf("📦 Distancia %.0fkm - Envío coordinado con Starken. Te contactaremos con el costo exacto.", rounded),
		DistanceKm: &km,
	}
}

func nonEmpty(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
