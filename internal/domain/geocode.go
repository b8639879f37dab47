package domain

import (
	"context"
	"log/slog"
)

// EnrichWithGeocoding resolves the sample's coordinate to a place name. A nil
// geocoder, a missing coordinate or a provider failure leave the sample as it
// was, with GeoSource recording what happened.
func EnrichWithGeocoding(ctx context.Context, sample FieldSample, geocoder Geocoder, logger *slog.Logger) FieldSample {
	if geocoder == nil {
		return sample
	}
	if sample.Geo == nil {
		sample.GeoSource = "original"
		return sample
	}

	result, err := geocoder.ReverseGeocode(ctx, sample.Geo.Lat, sample.Geo.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"sample_id", sample.ID,
			"lat", sample.Geo.Lat,
			"lon", sample.Geo.Lon,
			"error", err,
		)
		sample.GeoSource = "failed"
		return sample
	}
	if result.FormattedAddress == "" {
		sample.GeoSource = "original"
		return sample
	}

	sample.FormattedAddress = result.FormattedAddress
	sample.PlaceName = result.PlaceName
	sample.GeoConfidence = result.Confidence
	sample.GeoSource = "reverse"
	return sample
}
