package domain

import (
	"context"
	"log/slog"
	"strings"
	"unicode"
)

// GeocodeLocations resolves each location to coordinates with the geocoder.
// Locations the provider cannot resolve, or resolves with confidence below
// minConfidence, are returned in unresolved instead of failing the batch.
// A context error stops the loop and is returned.
func GeocodeLocations(ctx context.Context, geocoder Geocoder, locations []string, region string, minConfidence float64, logger *slog.Logger) (resolved []LocationCoordinate, unresolved []string, err error) {
	for _, loc := range locations {
		if err := ctx.Err(); err != nil {
			return resolved, unresolved, err
		}

		result, err := geocoder.ForwardGeocode(ctx, PlaceQuery(loc), region)
		if err != nil {
			logger.Warn("forward geocoding failed", "location", loc, "region", region, "error", err)
			unresolved = append(unresolved, loc)
			continue
		}
		if result.Lat == 0 && result.Lon == 0 {
			logger.Warn("no geocoding match", "location", loc, "region", region)
			unresolved = append(unresolved, loc)
			continue
		}
		if result.Confidence < minConfidence {
			logger.Warn("geocoding match below confidence threshold",
				"location", loc,
				"place", result.FormattedAddress,
				"confidence", result.Confidence,
			)
			unresolved = append(unresolved, loc)
			continue
		}

		resolved = append(resolved, LocationCoordinate{
			Location:  loc,
			Latitude:  result.Lat,
			Longitude: result.Lon,
		})
	}
	return resolved, unresolved, nil
}

// PlaceQuery turns a station identifier into a geocoding query. Station
// identifiers concatenate words in CamelCase ("MountGambier",
// "NorfolkIsland"); they are split back into words.
func PlaceQuery(location string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(location))
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
