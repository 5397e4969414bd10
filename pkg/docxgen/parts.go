package docxgen

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"
)

const (
	documentPartName     = "word/document.xml"
	contentTypesPartName = "[Content_Types].xml"
	mediaDir             = "word/media/"
)

var (
	headerFooterRegex = regexp.MustCompile(`^word/(header|footer)\d+\.xml$`)
	mediaImageRegex   = regexp.MustCompile(`^word/media/image(\d+)\.[A-Za-z0-9]+$`)
)

// Part is one named entry of the package
type Part struct {
	Name string
	file *zip.File
}

// Read returns the uncompressed content of the part
func (p *Part) Read() ([]byte, error) {
	rc, err := p.file.Open()
	if err != nil {
		return nil, NewDocumentError("open", p.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, NewDocumentError("read", p.Name, err)
	}
	return content, nil
}

// Header returns a copy of the part's zip header
func (p *Part) Header() zip.FileHeader {
	return p.file.FileHeader
}

// IsTemplate reports whether the part may hold placeholders
func (p *Part) IsTemplate() bool {
	return isTemplatePart(p.Name)
}

func isTemplatePart(name string) bool {
	return name == documentPartName || headerFooterRegex.MatchString(name)
}

// PartSet is the ordered collection of entries read from a DOCX package.
// Entries keep their archive order so passthrough output mirrors the input.
type PartSet struct {
	parts []*Part
	index map[string]*Part
}

// ReadPartSet indexes the entries of a DOCX package held in memory.
func ReadPartSet(ctx context.Context, data []byte) (*PartSet, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, NewDocumentError("read", "", fmt.Errorf("failed to read zip file: %w", err))
	}

	ps := &PartSet{index: make(map[string]*Part, len(zr.File))}
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, dup := ps.index[f.Name]; dup {
			return nil, NewDocumentError("read", f.Name, fmt.Errorf("duplicate entry"))
		}
		p := &Part{Name: f.Name, file: f}
		ps.parts = append(ps.parts, p)
		ps.index[f.Name] = p
	}

	if _, ok := ps.index[documentPartName]; !ok {
		return nil, NewDocumentError("read", "", fmt.Errorf("not a valid DOCX file: missing %s", documentPartName))
	}
	if _, ok := ps.index[contentTypesPartName]; !ok {
		return nil, NewDocumentError("read", "", fmt.Errorf("not a valid DOCX file: missing %s", contentTypesPartName))
	}

	return ps, nil
}

// Parts returns the parts in archive order
func (ps *PartSet) Parts() []*Part {
	return ps.parts
}

// Get looks up a part by name
func (ps *PartSet) Get(name string) (*Part, bool) {
	p, ok := ps.index[name]
	return p, ok
}

// TemplateParts returns the body, header and footer parts in archive order
func (ps *PartSet) TemplateParts() []*Part {
	var out []*Part
	for _, p := range ps.parts {
		if p.IsTemplate() {
			out = append(out, p)
		}
	}
	return out
}

// MaxMediaIndex returns the highest N among word/media/imageN.* entries
func (ps *PartSet) MaxMediaIndex() int {
	max := 0
	for _, p := range ps.parts {
		m := mediaImageRegex.FindStringSubmatch(p.Name)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max
}

// relsPartName maps a part to its relationships part,
// e.g. "word/document.xml" -> "word/_rels/document.xml.rels"
func relsPartName(partName string) string {
	dir, base := path.Split(partName)
	return dir + "_rels/" + base + ".rels"
}

// relTarget expresses target relative to the directory of partName
func relTarget(partName, target string) string {
	dir, _ := path.Split(partName)
	return strings.TrimPrefix(target, dir)
}
