package models

// MatchQuality classifies how a device book relates to the library, highest
// to lowest. Classification is a pure function of the book's hash, UUID,
// match list, on-device status, metadata mismatches, and duplicate counts in
// the device-side hash map.
type MatchQuality int

const (
	// NoMatch is a device-only book with a single copy.
	NoMatch MatchQuality = 0
	// DeviceOnlyDuplicate is one of two or more device books sharing a
	// content hash with no corresponding library match.
	DeviceOnlyDuplicate MatchQuality = 1
	// DuplicateOfLibrary is a device book whose UUID appears among its hash
	// matches without qualifying as a hard or soft match.
	DuplicateOfLibrary MatchQuality = 2
	// SoftMatch is a match by content hash alone, or a hard-match candidate
	// with metadata differences.
	SoftMatch MatchQuality = 3
	// HardMatch is a device book whose content hash and UUID both agree with
	// exactly one library book, with no metadata differences.
	HardMatch MatchQuality = 4
)

func (q MatchQuality) String() string {
	switch q {
	case HardMatch:
		return "hard match"
	case SoftMatch:
		return "soft match"
	case DuplicateOfLibrary:
		return "duplicate of library"
	case DeviceOnlyDuplicate:
		return "device-only duplicate"
	default:
		return "no match"
	}
}

// Mismatch holds the two sides of a diverging metadata field.
type Mismatch struct {
	Library any `json:"library"`
	Device  any `json:"device"`
}

// Mismatches maps field names to their diverging values. Only fields that
// actually differ are present.
type Mismatches map[string]Mismatch
