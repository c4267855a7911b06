package advert

import (
	"log/slog"
	"strings"
)

// ServiceUUID is the well-known 16-bit proximity-pairing service UUID.
// Fixed by the protocol; records qualify by advertising it.
const ServiceUUID uint16 = 0xFE2C

// CompanyID is the vendor's registered Bluetooth company identifier, compared
// little-endian against the first two bytes of manufacturer data.
const CompanyID uint16 = 0x00E0

// Confidence ranks how strongly a record matched.
type Confidence uint8

const (
	// ConfidenceServiceData - model id present in pairing service data.
	ConfidenceServiceData Confidence = iota

	// ConfidenceServiceUUID - pairing service UUID advertised without data.
	ConfidenceServiceUUID

	// ConfidenceManufacturer - vendor company id in manufacturer data.
	ConfidenceManufacturer

	// ConfidenceName - keyword match on the local name only.
	ConfidenceName
)

// String returns the confidence name.
func (c Confidence) String() string {
	switch c {
	case ConfidenceServiceData:
		return "SERVICE_DATA"
	case ConfidenceServiceUUID:
		return "SERVICE_UUID"
	case ConfidenceManufacturer:
		return "MANUFACTURER"
	case ConfidenceName:
		return "NAME"
	default:
		return "UNKNOWN"
	}
}

// Candidate is a record judged to be a pairing candidate.
type Candidate struct {
	// ModelID is the 6-hex-digit model identifier, or ModelIDUnknown.
	ModelID string

	// Name is the best-effort advertised name. May be empty.
	Name string

	// Category is the inferred form factor, from the name.
	Category Category

	// Confidence records which rule matched.
	Confidence Confidence
}

// defaultKeywords is the curated list for the name-fallback path.
var defaultKeywords = []string{
	"buds", "pods", "earphone", "headphone", "headset", "speaker",
}

// Options configures a Classifier.
type Options struct {
	// DisableNameFallback turns off the lowest-confidence keyword path.
	DisableNameFallback bool

	// Keywords overrides the curated keyword list for the name fallback.
	Keywords []string

	// Logger receives malformed-record debug events. Nil disables logging.
	Logger *slog.Logger
}

// Classifier decides pairing candidacy for raw advertisement records.
// The zero value is usable with default options.
type Classifier struct {
	opts Options
}

// NewClassifier creates a classifier with the given options.
func NewClassifier(opts Options) *Classifier {
	if len(opts.Keywords) == 0 {
		opts.Keywords = defaultKeywords
	}
	return &Classifier{opts: opts}
}

// Classify applies the candidacy rules in priority order and returns the
// candidate and true on a match. First match wins; a malformed service-data
// payload disqualifies the record entirely rather than falling through.
func (c *Classifier) Classify(rec Record) (Candidate, bool) {
	keywords := c.opts.Keywords
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}

	// Rule 1: model id in pairing service data.
	if data, ok := rec.ServiceData[ServiceUUID]; ok {
		if len(data) < ModelIDLen {
			if c.opts.Logger != nil {
				c.opts.Logger.Debug("dropping malformed advertisement",
					"address", rec.Address,
					"service_data_len", len(data),
					"error", ErrShortServiceData)
			}
			return Candidate{}, false
		}
		var id [ModelIDLen]byte
		copy(id[:], data[:ModelIDLen])
		return c.candidate(rec, FormatModelID(id), ConfidenceServiceData), true
	}

	// Rule 2: pairing service UUID without service data.
	if rec.HasServiceUUID(ServiceUUID) {
		return c.candidate(rec, ModelIDUnknown, ConfidenceServiceUUID), true
	}

	// Rule 3: vendor company identifier in manufacturer data.
	if len(rec.ManufacturerData) >= 2 {
		company := uint16(rec.ManufacturerData[0]) | uint16(rec.ManufacturerData[1])<<8
		if company == CompanyID {
			return c.candidate(rec, ModelIDUnknown, ConfidenceManufacturer), true
		}
	}

	// Rule 4: keyword match on the local name.
	if !c.opts.DisableNameFallback && rec.LocalName != "" {
		lower := strings.ToLower(rec.LocalName)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return c.candidate(rec, ModelIDUnknown, ConfidenceName), true
			}
		}
	}

	return Candidate{}, false
}

func (c *Classifier) candidate(rec Record, modelID string, conf Confidence) Candidate {
	return Candidate{
		ModelID:    modelID,
		Name:       rec.LocalName,
		Category:   InferCategory(rec.LocalName),
		Confidence: conf,
	}
}
