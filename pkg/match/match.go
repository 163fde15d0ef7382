// Package match classifies device books against the library's hash and
// identity maps. Classification is pure: re-running it over an unchanged
// record set yields identical results.
package match

import (
	"github.com/marvinsync/marvinsync/pkg/epubhash"
	"github.com/marvinsync/marvinsync/pkg/library"
	"github.com/marvinsync/marvinsync/pkg/models"
)

// DeviceHashMap maps a content hash to the device book ids sharing it.
type DeviceHashMap map[string][]int

// HardCandidates maps a content hash to the device book id that claimed
// the hard match for it.
type HardCandidates map[string]int

// BuildDeviceHashMap indexes the records by content hash. Books whose hash
// is unavailable are left out.
func BuildDeviceHashMap(records []*models.BookRecord) DeviceHashMap {
	hm := DeviceHashMap{}
	for _, record := range records {
		if record.Hash == epubhash.Unavailable {
			continue
		}
		hm[record.Hash] = append(hm[record.Hash], record.BookID)
	}
	return hm
}

// FindMatches fills each record's library UUID match list from the library
// hash map and elects a hard candidate per hash. A record whose own UUID
// sits in its hash bucket is a hard candidate; when several device copies
// of one hash qualify, the first one in record order claims the hash and
// the rest classify as duplicates of it. Records colliding with a hard
// candidate's hash inherit the candidate's UUID list.
func FindMatches(records []*models.BookRecord, libraryHashes library.HashMap) HardCandidates {
	hard := HardCandidates{}

	for _, record := range records {
		record.Matches = []string{}
		if record.Hash == epubhash.Unavailable {
			continue
		}

		bucket := libraryHashes[record.Hash]
		record.Matches = append(record.Matches, bucket...)

		if _, claimed := hard[record.Hash]; !claimed && contains(bucket, record.UUID) {
			hard[record.Hash] = record.BookID
		}
	}

	// Hash collision forwarding: a soft record sharing a hard candidate's
	// hash carries the candidate's UUIDs, marking it a likely duplicate of
	// a confirmed match.
	byID := make(map[int]*models.BookRecord, len(records))
	for _, record := range records {
		byID[record.BookID] = record
	}
	for hash, id := range hard {
		winner := byID[id]
		for _, record := range records {
			if record.Hash != hash || record.BookID == id {
				continue
			}
			for _, uuid := range winner.Matches {
				if !contains(record.Matches, uuid) {
					record.Matches = append(record.Matches, uuid)
				}
			}
		}
	}

	return hard
}

// Classify assigns the match quality ordinal for one record. A hard match
// requires the bucket to agree with exactly one library book; a record
// whose UUID sits in a multi-UUID bucket is a duplicate of a library copy.
func Classify(record *models.BookRecord, deviceHashes DeviceHashMap, hard HardCandidates) models.MatchQuality {
	if len(record.Matches) > 0 {
		if contains(record.Matches, record.UUID) {
			if len(record.Matches) > 1 {
				// Several library copies share this content.
				return models.DuplicateOfLibrary
			}
			if id, ok := hard[record.Hash]; ok && id != record.BookID {
				// Another device copy already claimed this hash.
				return models.DuplicateOfLibrary
			}
			if len(record.MetadataMismatches) > 0 {
				return models.SoftMatch
			}
			return models.HardMatch
		}
		return models.SoftMatch
	}

	if record.Hash != epubhash.Unavailable && len(deviceHashes[record.Hash]) > 1 {
		return models.DeviceOnlyDuplicate
	}
	return models.NoMatch
}

// ClassifyAll runs the full pipeline over a record set and returns the
// quality per device book id.
func ClassifyAll(records []*models.BookRecord, libraryHashes library.HashMap) map[int]models.MatchQuality {
	deviceHashes := BuildDeviceHashMap(records)
	hard := FindMatches(records, libraryHashes)

	out := make(map[int]models.MatchQuality, len(records))
	for _, record := range records {
		out[record.BookID] = Classify(record, deviceHashes, hard)
	}
	return out
}

func contains(list []string, value string) bool {
	if value == "" {
		return false
	}
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
