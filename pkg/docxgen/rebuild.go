package docxgen

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// newEntry is a part that did not exist in the template
type newEntry struct {
	name   string
	data   []byte
	method uint16
}

// rebuildPlan describes the output package: every template entry in its
// original order, replaced where a part was rewritten, then the new entries
// in the order they were allocated.
type rebuildPlan struct {
	parts    *PartSet
	replaced map[string][]byte
	added    []*newEntry
	media    []string
}

func newRebuildPlan(parts *PartSet) *rebuildPlan {
	return &rebuildPlan{parts: parts, replaced: make(map[string][]byte)}
}

func (p *rebuildPlan) has(name string) bool {
	if _, ok := p.parts.Get(name); ok {
		return true
	}
	for _, e := range p.added {
		if e.name == name {
			return true
		}
	}
	return false
}

func (p *rebuildPlan) add(name string, data []byte, method uint16) *newEntry {
	e := &newEntry{name: name, data: data, method: method}
	p.added = append(p.added, e)
	return e
}

// content returns the output bytes of an entry
func (p *rebuildPlan) content(name string) ([]byte, error) {
	if data, ok := p.replaced[name]; ok {
		return data, nil
	}
	for _, e := range p.added {
		if e.name == name {
			return e.data, nil
		}
	}
	part, ok := p.parts.Get(name)
	if !ok {
		return nil, fmt.Errorf("no entry %s", name)
	}
	return part.Read()
}

// sourceDir returns the directory relationship targets of a .rels part are relative to,
// e.g. "word/_rels/document.xml.rels" -> "word".
func sourceDir(relsName string) string {
	dir := path.Dir(path.Dir(relsName))
	if dir == "." {
		return ""
	}
	return dir
}

// verify checks that every new media part is referenced by exactly one
// relationship and has a registered content type.
func (p *rebuildPlan) verify() error {
	if len(p.media) == 0 {
		return nil
	}

	refs := make(map[string]int)
	var relsNames []string
	for name := range p.replaced {
		if strings.HasSuffix(name, ".rels") {
			relsNames = append(relsNames, name)
		}
	}
	for _, e := range p.added {
		if strings.HasSuffix(e.name, ".rels") {
			relsNames = append(relsNames, e.name)
		}
	}
	for _, name := range relsNames {
		data, err := p.content(name)
		if err != nil {
			return &RebuildError{Part: name, Reason: "relationships unavailable", Cause: err}
		}
		rels, err := parseRelationships(data)
		if err != nil {
			return &RebuildError{Part: name, Reason: "relationships do not parse", Cause: err}
		}
		for _, rel := range rels.Relationship {
			if rel.TargetMode == "External" {
				continue
			}
			target := path.Join(sourceDir(name), rel.Target)
			if strings.HasPrefix(rel.Target, "/") {
				target = strings.TrimPrefix(rel.Target, "/")
			}
			refs[target]++
		}
	}

	ctData, err := p.content(contentTypesPartName)
	if err != nil {
		return &RebuildError{Part: contentTypesPartName, Reason: "content types unavailable", Cause: err}
	}
	ct, err := parseContentTypes(ctData)
	if err != nil {
		return &RebuildError{Part: contentTypesPartName, Reason: "content types do not parse", Cause: err}
	}
	registered := make(map[string]bool)
	for _, d := range ct.Defaults {
		registered[strings.ToLower(d.Extension)] = true
	}
	for _, o := range ct.Overrides {
		registered[strings.TrimPrefix(o.PartName, "/")] = true
	}

	for _, name := range p.media {
		if n := refs[name]; n != 1 {
			return &RebuildError{Part: name, Reason: fmt.Sprintf("media part is the target of %d relationships, expected 1", n)}
		}
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
		if !registered[ext] && !registered[name] {
			return &RebuildError{Part: name, Reason: "no content type registered for ." + ext}
		}
	}
	return nil
}

// write emits the package. Untouched entries are copied without being
// recompressed so their bytes match the template exactly.
func (p *rebuildPlan) write(ctx context.Context, w io.Writer) error {
	zw := zip.NewWriter(w)

	for _, part := range p.parts.Parts() {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, ok := p.replaced[part.Name]
		if !ok {
			if err := zw.Copy(part.file); err != nil {
				return NewDocumentError("copy", part.Name, err)
			}
			continue
		}

		h := part.Header()
		fh := &zip.FileHeader{
			Name:           h.Name,
			Comment:        h.Comment,
			Method:         h.Method,
			Modified:       h.Modified,
			ModifiedTime:   h.ModifiedTime,
			ModifiedDate:   h.ModifiedDate,
			ExternalAttrs:  h.ExternalAttrs,
			CreatorVersion: h.CreatorVersion,
		}
		if fh.Method != zip.Store {
			fh.Method = zip.Deflate
		}
		if err := writeEntry(zw, fh, data); err != nil {
			return err
		}
	}

	for _, e := range p.added {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeEntry(zw, &zip.FileHeader{Name: e.name, Method: e.method}, e.data); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return NewDocumentError("write", "", fmt.Errorf("failed to close zip writer: %w", err))
	}
	return nil
}

func writeEntry(zw *zip.Writer, fh *zip.FileHeader, data []byte) error {
	fw, err := zw.CreateHeader(fh)
	if err != nil {
		return NewDocumentError("write", fh.Name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return NewDocumentError("write", fh.Name, err)
	}
	return nil
}
