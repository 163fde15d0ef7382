package models

import "github.com/uptrace/bun"

// Bun models for the device's embedded database (mainDb). Column names
// mirror the device schema exactly; everything here is queried read-only
// except where a reconciliation operation explicitly writes back.

type DeviceBook struct {
	bun.BaseModel `bun:"table:Books,alias:b"`

	ID                 int     `bun:"ID,pk"`
	Title              string  `bun:"Title"`
	Author             string  `bun:"Author"`
	AuthorSort         string  `bun:"AuthorSort"`
	CalibreCoverHash   string  `bun:"CalibreCoverHash"`
	CalibreSeries      string  `bun:"CalibreSeries"`
	CalibreSeriesIndex string  `bun:"CalibreSeriesIndex"`
	CalibreTitleSort   string  `bun:"CalibreTitleSort"`
	CoverFile          string  `bun:"CoverFile"`
	DateOpened         int64   `bun:"DateOpened"`
	DatePublished      int64   `bun:"DatePublished"`
	DeepViewPrepared   bool    `bun:"DeepViewPrepared"`
	Description        string  `bun:"Description"`
	FileName           string  `bun:"FileName"`
	IsRead             bool    `bun:"IsRead"`
	NewFlag            bool    `bun:"NewFlag"`
	Progress           float64 `bun:"Progress"`
	Publisher          string  `bun:"Publisher"`
	ReadingList        bool    `bun:"ReadingList"`
	UUID               string  `bun:"UUID"`
	WordCount          int     `bun:"WordCount"`
}

// Flags folds the three boolean flag columns into the in-memory bit field.
func (b *DeviceBook) Flags() FlagSet {
	var f FlagSet
	if b.NewFlag {
		f = f.Set(FlagNew)
	}
	if b.ReadingList {
		f = f.Set(FlagReadingList)
	}
	if b.IsRead {
		f = f.Set(FlagRead)
	}
	return f
}

type DeviceCollection struct {
	bun.BaseModel `bun:"table:Collections,alias:c"`

	ID   int    `bun:"ID,pk,autoincrement"`
	Name string `bun:"Name"`
}

type DeviceBookCollection struct {
	bun.BaseModel `bun:"table:BookCollections,alias:bc"`

	BookID       int `bun:"BookID"`
	CollectionID int `bun:"CollectionID"`
}

type DeviceHighlight struct {
	bun.BaseModel `bun:"table:Highlights,alias:h"`

	BookID int    `bun:"BookID"`
	Text   string `bun:"Text"`
	Note   string `bun:"Note"`
}

type DeviceVocabularyWord struct {
	bun.BaseModel `bun:"table:Vocabulary,alias:v"`

	BookID int    `bun:"BookID"`
	Word   string `bun:"Word"`
}

type DevicePinnedArticle struct {
	bun.BaseModel `bun:"table:PinnedArticles,alias:pa"`

	BookID int    `bun:"BookID"`
	Title  string `bun:"Title"`
	URL    string `bun:"URL"`
}

type DeviceWikiSnippet struct {
	bun.BaseModel `bun:"table:Wiki,alias:w"`

	BookID  int    `bun:"BookID"`
	Title   string `bun:"Title"`
	Snippet string `bun:"Snippet"`
}

type DeviceBookSubject struct {
	bun.BaseModel `bun:"table:BookSubjects,alias:bs"`

	BookID  int    `bun:"BookID"`
	Subject string `bun:"Subject"`
}
