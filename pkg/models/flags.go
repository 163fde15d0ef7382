package models

import "strings"

// FlagSet is the 3-bit reading-state field used by the device. The device
// stores flags and collection assignments in one underlying field, so flags
// are kept separate in memory and only merged with collections at the
// device-write boundary.
type FlagSet int

const (
	FlagRead        FlagSet = 1
	FlagReadingList FlagSet = 2
	FlagNew         FlagSet = 4
)

// Flag display names, in the order the device renders them.
const (
	FlagNameNew         = "NEW"
	FlagNameReadingList = "READING LIST"
	FlagNameRead        = "READ"
)

func (f FlagSet) Has(mask FlagSet) bool {
	return f&mask != 0
}

// Set returns f with the given bits set.
func (f FlagSet) Set(mask FlagSet) FlagSet {
	return f | mask
}

// Clear returns f with the given bits cleared. Clearing a bit that is not
// set leaves f unchanged.
func (f FlagSet) Clear(mask FlagSet) FlagSet {
	return f &^ mask
}

// Names returns the display names of the set flags, highest bit first.
func (f FlagSet) Names() []string {
	names := []string{}
	if f.Has(FlagNew) {
		names = append(names, FlagNameNew)
	}
	if f.Has(FlagReadingList) {
		names = append(names, FlagNameReadingList)
	}
	if f.Has(FlagRead) {
		names = append(names, FlagNameRead)
	}
	return names
}

func (f FlagSet) String() string {
	return strings.Join(f.Names(), ", ")
}

// ParseFlags folds a list of flag display names back into a FlagSet.
// Unknown names are ignored.
func ParseFlags(names []string) FlagSet {
	var f FlagSet
	for _, name := range names {
		switch name {
		case FlagNameNew:
			f = f.Set(FlagNew)
		case FlagNameReadingList:
			f = f.Set(FlagReadingList)
		case FlagNameRead:
			f = f.Set(FlagRead)
		}
	}
	return f
}
