// Package epubhash computes a stable content fingerprint for an EPUB. The
// digest covers the names and uncompressed sizes of the textual constituent
// files (markup and stylesheets), deliberately excluding images, fonts, and
// the package metadata itself so that metadata-only edits don't change the
// hash.
package epubhash

import (
	"archive/zip"
	"crypto/md5" //nolint:gosec // fingerprint, not security
	"encoding/hex"
	"encoding/xml"
	"io"
	"os"
	"path"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// Unavailable is the sentinel returned when the container can't be parsed.
// Callers treat it as "no match possible" rather than a failure.
const Unavailable = ""

type container struct {
	XMLName   xml.Name `xml:"container"`
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

type opfPackage struct {
	XMLName  xml.Name `xml:"package"`
	Manifest struct {
		Item []struct {
			ID        string `xml:"id,attr"`
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
}

var textualMediaTypes = map[string]bool{
	"application/xhtml+xml": true,
	"text/css":              true,
}

// Compute opens the EPUB at epubPath and returns its content fingerprint.
// An unreadable file is an error; an unparseable container is not — it
// yields the Unavailable sentinel after logging.
func Compute(epubPath string) (string, error) {
	f, err := os.Open(epubPath)
	if err != nil {
		return Unavailable, errors.WithStack(err)
	}
	defer f.Close()

	stats, err := f.Stat()
	if err != nil {
		return Unavailable, errors.WithStack(err)
	}

	return ComputeReader(f, stats.Size()), nil
}

// ComputeReader computes the content fingerprint from an open zip stream.
// Any parse failure degrades to the Unavailable sentinel.
func ComputeReader(r io.ReaderAt, size int64) string {
	log := logger.New()

	zipReader, err := zip.NewReader(r, size)
	if err != nil {
		log.Err(err).Debug("can't open book container")
		return Unavailable
	}

	textNames, err := textualEntryNames(zipReader)
	if err != nil {
		log.Err(err).Debug("can't parse book manifest")
		return Unavailable
	}

	// Feed name and uncompressed size of each qualifying entry into the
	// digest, in central-directory order.
	m := md5.New() //nolint:gosec
	for _, file := range zipReader.File {
		if !textNames[path.Base(file.Name)] {
			continue
		}
		io.WriteString(m, file.Name)                                    //nolint:errcheck
		io.WriteString(m, strconv.FormatUint(file.UncompressedSize64, 10)) //nolint:errcheck
	}

	return hex.EncodeToString(m.Sum(nil))
}

// textualEntryNames resolves the OPF through META-INF/container.xml and
// returns the basenames of manifest entries whose media type is markup or
// stylesheet.
func textualEntryNames(zipReader *zip.Reader) (map[string]bool, error) {
	containerXML, err := readEntry(zipReader, "META-INF/container.xml")
	if err != nil {
		return nil, err
	}

	c := &container{}
	if err := xml.Unmarshal(containerXML, c); err != nil {
		return nil, errors.WithStack(err)
	}
	if len(c.Rootfiles.Rootfile) == 0 {
		return nil, errors.New("container has no rootfile")
	}

	opfXML, err := readEntry(zipReader, c.Rootfiles.Rootfile[0].FullPath)
	if err != nil {
		return nil, err
	}

	pkg := &opfPackage{}
	if err := xml.Unmarshal(opfXML, pkg); err != nil {
		return nil, errors.WithStack(err)
	}

	names := map[string]bool{}
	for _, item := range pkg.Manifest.Item {
		mt := item.MediaType
		if mt == "" {
			// Some generators omit the media type; fall back to sniffing
			// the entry contents.
			mt = sniffMediaType(zipReader, item.Href)
		}
		if textualMediaTypes[mt] {
			names[path.Base(item.Href)] = true
		}
	}
	return names, nil
}

func readEntry(zipReader *zip.Reader, name string) ([]byte, error) {
	for _, file := range zipReader.File {
		if file.Name == name {
			r, err := file.Open()
			if err != nil {
				return nil, errors.WithStack(err)
			}
			defer r.Close()
			b, err := io.ReadAll(r)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			return b, nil
		}
	}
	return nil, errors.Errorf("no %s entry found", name)
}

func sniffMediaType(zipReader *zip.Reader, href string) string {
	base := path.Base(href)
	for _, file := range zipReader.File {
		if path.Base(file.Name) != base {
			continue
		}
		r, err := file.Open()
		if err != nil {
			return ""
		}
		mtype, err := mimetype.DetectReader(r)
		r.Close()
		if err != nil {
			return ""
		}
		switch {
		case mtype.Is("text/html"), mtype.Is("application/xhtml+xml"):
			return "application/xhtml+xml"
		case mtype.Is("text/css"):
			return "text/css"
		}
		return mtype.String()
	}
	return ""
}
