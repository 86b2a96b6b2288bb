package project

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/owlplug/owlplug-engine/internal/pathcodec"
	"github.com/owlplug/owlplug-engine/internal/safety"
)

const (
	// AbletonExtension is the extension of Ableton Live Set files.
	AbletonExtension = ".als"
	// ApplicationAbleton identifies projects read by AbletonExplorer.
	ApplicationAbleton = "ableton"
)

// AbletonExplorer reads Ableton Live Sets: a compressed XML document whose
// root Ableton element carries the Creator and MajorVersion attributes.
type AbletonExplorer struct {
	collector        Collector
	maxDocumentBytes int64
	logger           *slog.Logger
}

// NewAbletonExplorer creates an explorer using Schema5Collector.
func NewAbletonExplorer(maxDocumentBytes int64, logger *slog.Logger) *AbletonExplorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AbletonExplorer{
		collector:        Schema5Collector{},
		maxDocumentBytes: maxDocumentBytes,
		logger:           logger,
	}
}

// CanExplore implements Explorer.
func (a *AbletonExplorer) CanExplore(path string) bool {
	return strings.EqualFold(filepath.Ext(path), AbletonExtension)
}

// Explore implements Explorer.
func (a *AbletonExplorer) Explore(path string) (*Project, error) {
	if !a.CanExplore(path) {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ExploreError{Kind: KindNotFound, Path: path, Err: err}
		}
		return nil, &ExploreError{Kind: KindRead, Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &ExploreError{Kind: KindRead, Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, nil
	}

	a.logger.Debug("exploring project file", "path", path)

	zr, err := NewDecompressReader(f)
	if err != nil {
		return nil, &ExploreError{Kind: KindDecompress, Path: path, Err: err}
	}
	defer zr.Close()

	src := &trackingReader{r: safety.LimitReader(zr, a.maxDocumentBytes)}
	dec := xml.NewDecoder(src)

	proj, err := a.readDocument(dec)
	if err != nil {
		// Errors raised by the stream below the parser are decompression
		// failures, not malformed XML.
		if src.err != nil {
			return nil, &ExploreError{Kind: KindDecompress, Path: path, Err: src.err}
		}
		return nil, &ExploreError{Kind: KindParse, Path: path, Err: err}
	}

	proj.Application = ApplicationAbleton
	proj.Path = pathcodec.Canonicalize(path)
	proj.Name = strings.TrimSuffix(info.Name(), filepath.Ext(info.Name()))
	proj.LastModifiedAt = info.ModTime()
	proj.CreatedAt = birthTime(path, info)

	a.logger.Debug("project file explored", "path", path, "plugins", len(proj.Plugins))
	return proj, nil
}

func (a *AbletonExplorer) readDocument(dec *xml.Decoder) (*Project, error) {
	root, err := rootElement(dec)
	if err != nil {
		return nil, err
	}
	if root.Name.Local != "Ableton" {
		return nil, fmt.Errorf("unexpected root element %q", root.Name.Local)
	}

	creator, ok := attr(root, "Creator")
	if !ok {
		return nil, errors.New("root element has no Creator attribute")
	}
	version, ok := attr(root, "MajorVersion")
	if !ok {
		return nil, errors.New("root element has no MajorVersion attribute")
	}

	plugins, err := a.collector.Collect(dec)
	if err != nil {
		return nil, err
	}

	return &Project{
		AppFullName:   creator,
		FormatVersion: version,
		Plugins:       plugins,
	}, nil
}

func rootElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return xml.StartElement{}, errors.New("document has no root element")
			}
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

// trackingReader records the first non-EOF error of the underlying reader.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}
