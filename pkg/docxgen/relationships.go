package docxgen

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"

	docxml "github.com/benjaminschreck/go-docxgen/pkg/docxgen/xml"
)

const (
	imageRelationshipType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	relationshipsNS       = "http://schemas.openxmlformats.org/package/2006/relationships"
)

var relIDRegex = regexp.MustCompile(`^rId(\d+)$`)

// Relationship represents a relationship in the DOCX package
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// Relationships represents the collection of relationships
type Relationships struct {
	XMLName      xml.Name       `xml:"Relationships"`
	Namespace    string         `xml:"xmlns,attr"`
	Relationship []Relationship `xml:"Relationship"`
}

// relationshipSet is the editable relationships part of one template part.
// IDs are allocated from one past the highest existing numeric rId.
type relationshipSet struct {
	name   string
	doc    *docxml.Document
	exists bool
	next   int
	added  []*Relationship
}

func newRelationshipSet(name string, data []byte) (*relationshipSet, error) {
	rs := &relationshipSet{name: name, next: 1}
	if data == nil {
		doc, err := docxml.Parse([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
			`<Relationships xmlns="` + relationshipsNS + `"></Relationships>`))
		if err != nil {
			return nil, err
		}
		rs.doc = doc
		return rs, nil
	}

	doc, err := docxml.Parse(data)
	if err != nil {
		return nil, parseErrorFor(name, err)
	}
	if doc.Root.Local != "Relationships" {
		return nil, &ParseError{Part: name, Kind: UnsupportedSchema, Message: "root element is <" + doc.Root.Name() + ">, expected <Relationships>"}
	}
	rs.doc = doc
	rs.exists = true
	for _, rel := range doc.Root.Elements() {
		id, _ := rel.Attr("Id")
		if m := relIDRegex.FindStringSubmatch(id); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n >= rs.next {
				rs.next = n + 1
			}
		}
	}
	return rs, nil
}

// clone returns a set sharing the parsed part with rs but with its own
// allocations. The shared tree is never mutated.
func (rs *relationshipSet) clone() *relationshipSet {
	return &relationshipSet{name: rs.name, doc: rs.doc, exists: rs.exists, next: rs.next}
}

// allocate reserves the next relationship ID. The relationship is completed
// by the rebuilder once its target name is known.
func (rs *relationshipSet) allocate(relType string) *Relationship {
	rel := &Relationship{ID: "rId" + strconv.Itoa(rs.next), Type: relType}
	rs.next++
	rs.added = append(rs.added, rel)
	return rel
}

// Bytes writes the relationships part with every allocated relationship appended.
func (rs *relationshipSet) Bytes() ([]byte, error) {
	doc := rs.doc.Clone()
	for _, rel := range rs.added {
		if rel.Target == "" {
			return nil, &RebuildError{Part: rs.name, Reason: fmt.Sprintf("relationship %s has no target", rel.ID)}
		}
		attrs := []docxml.Attr{docxml.A("Id", rel.ID), docxml.A("Type", rel.Type), docxml.A("Target", rel.Target)}
		if rel.TargetMode != "" {
			attrs = append(attrs, docxml.A("TargetMode", rel.TargetMode))
		}
		el := docxml.NewElement(doc.Root.Prefix+prefixSep(doc.Root.Prefix)+"Relationship", attrs...)
		doc.Root.AppendChild(el)
	}
	return doc.Bytes(), nil
}

func prefixSep(prefix string) string {
	if prefix == "" {
		return ""
	}
	return ":"
}

// parseRelationships decodes a relationships part into typed entries
func parseRelationships(data []byte) (*Relationships, error) {
	var rels Relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("failed to parse relationships: %w", err)
	}
	return &rels, nil
}
