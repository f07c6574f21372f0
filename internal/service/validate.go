package service

// isValidLatitude checks if latitude is within valid range.
func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

// isValidLongitude checks if longitude is within valid range.
func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}
