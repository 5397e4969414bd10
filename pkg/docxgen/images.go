package docxgen

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"strings"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	docxml "github.com/benjaminschreck/go-docxgen/pkg/docxgen/xml"
)

const (
	emuPerInch       = 914400
	defaultWidthEMU  = 720000
	defaultHeightEMU = 900000

	wordprocessingDrawingNS = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	officeRelationshipsNS   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	drawingMLNS             = "http://schemas.openxmlformats.org/drawingml/2006/main"
	pictureNS               = "http://schemas.openxmlformats.org/drawingml/2006/picture"

	imageDescription = "Generated Image"
)

// supportedImageTypes maps accepted MIME types to media file extensions
var supportedImageTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/bmp":  "bmp",
	"image/tiff": "tiff",
}

// fallbackImage is a 1x1 transparent PNG
var fallbackImage = mustDecodeBase64("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

func mustDecodeBase64(s string) []byte {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return data
}

// embeddedImage is an image inserted into a part. Its media name and
// drawing ids are assigned once every part has been resolved.
type embeddedImage struct {
	rel   *Relationship
	mime  string
	ext   string
	data  []byte
	props []*docxml.Node
	name  string
}

// parseDataURI parses a data URI and returns the MIME type and decoded data
func parseDataURI(dataURI string) (string, []byte, error) {
	if dataURI == "" {
		return "", nil, fmt.Errorf("empty data URI")
	}

	// Data URI format: data:[<mediatype>][;base64],<data>
	if !strings.HasPrefix(dataURI, "data:") {
		return "", nil, fmt.Errorf("invalid data URI format")
	}
	dataURI = dataURI[5:]

	commaIndex := strings.Index(dataURI, ",")
	if commaIndex == -1 {
		return "", nil, fmt.Errorf("invalid data URI format")
	}

	metadata := dataURI[:commaIndex]
	dataStr := dataURI[commaIndex+1:]

	if dataStr == "" {
		return "", nil, fmt.Errorf("no image data")
	}

	if !strings.HasSuffix(metadata, ";base64") {
		return "", nil, fmt.Errorf("missing base64 marker")
	}

	mimeType := strings.TrimSuffix(metadata, ";base64")

	data, err := base64.StdEncoding.DecodeString(dataStr)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 data: %w", err)
	}

	return mimeType, data, nil
}

// imageFromText turns a text value bound to an image token into a payload:
// either a data URI or bare base64.
func imageFromText(s string) (*Image, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return &Image{}, nil
	}
	if strings.HasPrefix(s, "data:") {
		mime, data, err := parseDataURI(s)
		if err != nil {
			return nil, err
		}
		return &Image{Data: data, MIME: mime}, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 data: %w", err)
	}
	return &Image{Data: data}, nil
}

func normalizeMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/x-ms-bmp", "image/x-bmp":
		return "image/bmp"
	case "image/tif":
		return "image/tiff"
	}
	return mime
}

// sniffMIME detects the image format from its signature bytes
func sniffMIME(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif"
	case bytes.HasPrefix(data, []byte("BM")):
		return "image/bmp"
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return "image/tiff"
	}
	return ""
}

// validateImage returns the MIME type of img, or why it cannot be embedded.
func validateImage(img *Image) (string, string) {
	if img == nil || len(img.Data) == 0 {
		return "", "image payload is empty"
	}
	mime := normalizeMIME(img.MIME)
	if mime == "" {
		mime = sniffMIME(img.Data)
		if mime == "" {
			return "", "unrecognized image format"
		}
	}
	if _, ok := supportedImageTypes[mime]; !ok {
		return "", "unsupported image type " + mime
	}
	return mime, ""
}

// imageExtent computes the displayed size in EMU. Explicit sizes win; pixel
// sizes are converted at the configured DPI and scaled down to MaxImageEMU.
func imageExtent(img *Image, dpi int, maxEMU int64) (int64, int64) {
	if img.WidthEMU > 0 && img.HeightEMU > 0 {
		return img.WidthEMU, img.HeightEMU
	}

	cx, cy := int64(defaultWidthEMU), int64(defaultHeightEMU)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err == nil && cfg.Width > 0 && cfg.Height > 0 {
		cx = int64(cfg.Width) * emuPerInch / int64(dpi)
		cy = int64(cfg.Height) * emuPerInch / int64(dpi)
	}
	if cx == 0 || cy == 0 {
		cx, cy = defaultWidthEMU, defaultHeightEMU
	}

	switch {
	case img.WidthEMU > 0:
		cy = cy * img.WidthEMU / cx
		cx = img.WidthEMU
		return cx, max(cy, 1)
	case img.HeightEMU > 0:
		cx = cx * img.HeightEMU / cy
		cy = img.HeightEMU
		return max(cx, 1), cy
	}

	if maxEMU > 0 && (cx > maxEMU || cy > maxEMU) {
		if cx >= cy {
			cy = cy * maxEMU / cx
			cx = maxEMU
		} else {
			cx = cx * maxEMU / cy
			cy = maxEMU
		}
	}
	return max(cx, 1), max(cy, 1)
}

// drawingXML builds an inline picture run. The docPr and cNvPr ids are
// placeholders until numbering happens after all parts are resolved.
func drawingXML(relID string, cx, cy int64) string {
	var b strings.Builder
	b.WriteString(`<w:r><w:drawing><wp:inline distT="0" distB="0" distL="114300" distR="114300">`)
	fmt.Fprintf(&b, `<wp:extent cx="%d" cy="%d"/>`, cx, cy)
	b.WriteString(`<wp:effectExtent l="0" t="0" r="24765" b="24130"/>`)
	b.WriteString(`<wp:docPr id="0" name="Picture" descr="` + imageDescription + `"/>`)
	b.WriteString(`<wp:cNvGraphicFramePr><a:graphicFrameLocks xmlns:a="` + drawingMLNS + `" noChangeAspect="1"/></wp:cNvGraphicFramePr>`)
	b.WriteString(`<a:graphic xmlns:a="` + drawingMLNS + `"><a:graphicData uri="` + pictureNS + `">`)
	b.WriteString(`<pic:pic xmlns:pic="` + pictureNS + `"><pic:nvPicPr>`)
	b.WriteString(`<pic:cNvPr id="0" name="Picture" descr="` + imageDescription + `"/>`)
	b.WriteString(`<pic:cNvPicPr><a:picLocks noChangeAspect="1"/></pic:cNvPicPr></pic:nvPicPr>`)
	b.WriteString(`<pic:blipFill><a:blip r:embed="` + relID + `"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`)
	fmt.Fprintf(&b, `<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, cx, cy)
	b.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr></pic:pic></a:graphicData></a:graphic>`)
	b.WriteString(`</wp:inline></w:drawing></w:r>`)
	return b.String()
}

// embedImage validates img and builds the drawing run that replaces tok.
// decodeErr carries a failure to turn a text value into a payload.
func (r *resolver) embedImage(tok Token, img *Image, decodeErr error, location string) ([]*docxml.Node, error) {
	mime, reason := validateImage(img)
	if decodeErr != nil {
		mime, reason = "", decodeErr.Error()
	}
	if reason != "" {
		invalid := &ResolutionError{Kind: InvalidImage, Name: tok.Name, Part: r.job.part.Name, Location: location, Reason: reason}
		if r.cfg.OnInvalidImage != SubstituteDefault {
			return nil, invalid
		}
		img = r.cfg.DefaultImage
		if img == nil {
			img = &Image{Data: fallbackImage, MIME: "image/png"}
		}
		if mime, reason = validateImage(img); reason != "" {
			invalid.Reason = "default image: " + reason
			return nil, invalid
		}
		r.log.Warn("substituting default image",
			zap.String("name", tok.Name),
			zap.String("location", location),
			zap.String("reason", invalid.Reason))
	}

	cx, cy := imageExtent(img, r.cfg.DPI, r.cfg.MaxImageEMU)

	doc := r.job.doc
	if err := doc.EnsureNamespace("wp", wordprocessingDrawingNS); err != nil {
		return nil, &RebuildError{Part: r.job.part.Name, Reason: "cannot declare drawing namespace", Cause: err}
	}
	if err := doc.EnsureNamespace("r", officeRelationshipsNS); err != nil {
		return nil, &RebuildError{Part: r.job.part.Name, Reason: "cannot declare relationships namespace", Cause: err}
	}

	rels, err := r.job.relationships()
	if err != nil {
		return nil, err
	}
	rel := rels.allocate(imageRelationshipType)

	nodes, err := docxml.ParseFragment(drawingXML(rel.ID, cx, cy), doc.Root)
	if err != nil {
		return nil, &RebuildError{Part: r.job.part.Name, Reason: "cannot build drawing", Cause: err}
	}

	emb := &embeddedImage{
		rel:  rel,
		mime: mime,
		ext:  supportedImageTypes[mime],
		data: img.Data,
	}
	for _, n := range nodes {
		n.Walk(func(d *docxml.Node) bool {
			if d.Is("wp:docPr") || d.Is("pic:cNvPr") {
				emb.props = append(emb.props, d)
			}
			return true
		})
	}
	r.job.images = append(r.job.images, emb)
	r.log.Debug("embedded image",
		zap.String("name", tok.Name),
		zap.String("rel_id", rel.ID),
		zap.String("mime", mime),
		zap.Int64("cx", cx),
		zap.Int64("cy", cy))
	return nodes, nil
}

// number assigns the drawing id and picture name once the id is known.
func (e *embeddedImage) number(id int) {
	v := strconv.Itoa(id)
	for _, p := range e.props {
		p.SetAttr("id", v)
		p.SetAttr("name", "Picture "+v)
	}
}
