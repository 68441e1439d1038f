package validation

// HTTP body limits
const (
	// MaxBodySize is the maximum allowed request body size (64 KB).
	MaxBodySize = 64 * 1024

	// MaxBeaconBodySize bounds visitor snapshots sent via beacon; page
	// histories make them larger than ordinary JSON requests.
	MaxBeaconBodySize = 256 * 1024
)

// String length limits
const (
	MaxVisitorIDLength  = 128
	MaxFieldNameLength  = 100
	MaxFieldValueLength = 2000
	MaxFormTypeLength   = 64
	MaxURLLength        = 2048
	MaxUserAgentLength  = 512
	MaxLabelLength      = 256
)
