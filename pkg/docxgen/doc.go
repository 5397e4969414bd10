// Package docxgen generates Word documents (DOCX) from templates.
//
// A template is an ordinary DOCX package whose body, headers and footers
// contain placeholders. Generation binds a Context to those placeholders and
// returns a new package; the template itself is never modified.
//
// Basic Usage:
//
//	tmpl, err := docxgen.PrepareFile(ctx, "invoice.docx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	data := docxgen.Context{
//	    "customer": docxgen.Text("Acme Corp"),
//	    "items": docxgen.List(
//	        docxgen.Context{"product": docxgen.Text("Widget"), "qty": docxgen.Text("2")},
//	        docxgen.Context{"product": docxgen.Text("Gadget"), "qty": docxgen.Text("1")},
//	    ),
//	}
//
//	out, err := tmpl.Generate(ctx, data)
//
// JSON data can be bound with FromJSON; nested objects become dotted names.
//
// Template Syntax:
//
// Text: {{customer}}, {{customer.address}}
//
// Upper case: {{^customer}}
//
// Images: {{@logo}}
//
// Table row loops: {{#items}} in the first row of a block and {{/items}} in
// its last row. Inside a loop the record's names shadow outer ones and
// {{$index}} holds the 0-based record number.
//
// Placeholders split across differently formatted runs are recognized; the
// replacement takes the formatting of the run the placeholder starts in.
package docxgen
