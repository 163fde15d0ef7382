// Package command implements the XML command protocol spoken with the
// reading application on the device. A command is staged by writing a
// well-formed XML document into the staging folder under a temporary name
// and atomically renaming it into place; the device acknowledges and
// reports progress through a status document that is polled until the
// command completes.
package command

import (
	"encoding/xml"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Command names understood by the device application.
const (
	DeleteBooks    = "delete_books"
	UpdateMetadata = "update_metadata"
)

// rootElements maps a command name to its XML root element.
var rootElements = map[string]string{
	DeleteBooks:    "deletebooks",
	UpdateMetadata: "updatemetadata",
}

// ManifestBook identifies one affected book in a command manifest.
type ManifestBook struct {
	Author   string `xml:"author,attr"`
	Title    string `xml:"title,attr"`
	UUID     string `xml:"uuid,attr"`
	Filename string `xml:"filename,attr"`
}

type Command struct {
	// ID correlates log lines across staging and completion.
	ID        string
	Name      string
	Timestamp time.Time
	Manifest  []ManifestBook
}

func New(name string, books []ManifestBook) *Command {
	return &Command{
		ID:        uuid.NewString(),
		Name:      name,
		Timestamp: time.Now(),
		Manifest:  books,
	}
}

type manifestDoc struct {
	Books []ManifestBook `xml:"book"`
}

type commandDoc struct {
	XMLName   xml.Name
	Timestamp int64       `xml:"timestamp,attr"`
	Manifest  manifestDoc `xml:"manifest"`
}

// utf8BOM prefixes every rendered command; the device reader requires it.
var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// Render serializes the command as a UTF-8 XML document with BOM, the root
// element named for the command.
func (c *Command) Render() ([]byte, error) {
	element, ok := rootElements[c.Name]
	if !ok {
		return nil, errors.Errorf("unknown command %q", c.Name)
	}

	doc := commandDoc{
		XMLName:   xml.Name{Local: element},
		Timestamp: c.Timestamp.Unix(),
		Manifest:  manifestDoc{Books: c.Manifest},
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}

	out := append([]byte{}, utf8BOM...)
	out = append(out, []byte("<?xml version='1.0' encoding='utf-8'?>\n")...)
	out = append(out, body...)
	return out, nil
}

// StagedName returns the final filename of the command in the staging
// folder.
func (c *Command) StagedName(stagingFolder string) string {
	return path.Join(stagingFolder, c.Name+".xml")
}

// TempName returns the temporary filename used during the atomic handoff.
func (c *Command) TempName(stagingFolder string) string {
	return path.Join(stagingFolder, c.Name+".tmp")
}
