package plant

// SensorReading is one sample reported by the device.
type SensorReading struct {
	Luminosity   float64 `json:"luminosity" dynamodbav:"luminosity" firestore:"luminosity"`
	SoilMoisture float64 `json:"soilMoisture" dynamodbav:"soilMoisture" firestore:"soilMoisture"`
	UVLevel      float64 `json:"uvLevel" dynamodbav:"uvLevel" firestore:"uvLevel"`
}

// Validate checks the non-negative ranges. Soil moisture is not range-checked.
func (r SensorReading) Validate() error {
	if r.Luminosity < 0 {
		return Invalid("luminosity", "must be >= 0")
	}
	if r.UVLevel < 0 {
		return Invalid("uvLevel", "must be >= 0")
	}
	return nil
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat" dynamodbav:"lat" firestore:"lat"`
	Lon float64 `json:"lon" dynamodbav:"lon" firestore:"lon"`
}

// Validate checks latitude and longitude ranges.
func (l Location) Validate() error {
	if l.Lat < -90 || l.Lat > 90 {
		return Invalid("lat", "must be between -90 and 90")
	}
	if l.Lon < -180 || l.Lon > 180 {
		return Invalid("lon", "must be between -180 and 180")
	}
	return nil
}

// DeviceConfig is the persisted, user-editable part of a device.
type DeviceConfig struct {
	Difficulty DifficultyLevel `json:"difficulty,omitempty" firestore:"difficulty,omitempty"`
	Location   *Location       `json:"location,omitempty" firestore:"location,omitempty"`
}

// EffectiveDifficulty returns the stored level, or the default when it is
// absent or unknown.
func (c DeviceConfig) EffectiveDifficulty() DifficultyLevel {
	if c.Difficulty.Valid() {
		return c.Difficulty
	}
	if level, err := ParseDifficulty(string(c.Difficulty)); err == nil {
		return level
	}
	return DefaultDifficulty
}
