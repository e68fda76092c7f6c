package mldetector

// Config holds configuration for the demo detector service.
type Config struct {
	// Port is the port on which the detector listens.
	Port int

	// APIKey, when non-empty, is required in the X-API-Key header of
	// analysis requests.
	APIKey string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port: 5000,
	}
}
