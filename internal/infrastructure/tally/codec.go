package tally

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/tallybridge/backend/internal/domain/remote"
)

// wireDateFormat is the compact date form the remote system expects and emits.
const wireDateFormat = "20060102"

// xmlEscaper escapes the five structurally significant XML characters. Every
// user-supplied value is passed through it before interpolation, no
// exceptions.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escape(s string) string {
	return xmlEscaper.Replace(s)
}

// ---------------------------------------------------------------------------
// Request building
// ---------------------------------------------------------------------------

// BuildExportEnvelope constructs an export (read) request for the named
// report, scoped to the given company. Extra static variables are emitted in
// sorted key order so envelopes are deterministic.
func BuildExportEnvelope(reportName, company string, staticVars map[string]string) string {
	var vars strings.Builder
	vars.WriteString("<SVCURRENTCOMPANY>" + escape(company) + "</SVCURRENTCOMPANY>")
	vars.WriteString("<SVEXPORTFORMAT>$$SysName:XML</SVEXPORTFORMAT>")

	keys := make([]string, 0, len(staticVars))
	for k := range staticVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vars.WriteString("<" + k + ">" + escape(staticVars[k]) + "</" + k + ">")
	}

	return "<ENVELOPE><HEADER><TALLYREQUEST>Export Data</TALLYREQUEST></HEADER>" +
		"<BODY><EXPORTDATA><REQUESTDESC>" +
		"<REPORTNAME>" + escape(reportName) + "</REPORTNAME>" +
		"<STATICVARIABLES>" + vars.String() + "</STATICVARIABLES>" +
		"</REQUESTDESC></EXPORTDATA></BODY></ENVELOPE>"
}

// LedgerLine is one leg of a double-entry voucher. The deemed-positive line is
// the debit leg and carries the arithmetic negation of the voucher amount; the
// opposing line carries the amount itself. Getting this backward posts the
// transaction in the wrong direction without the remote system rejecting it.
type LedgerLine struct {
	LedgerName     string
	Amount         decimal.Decimal
	DeemedPositive bool
}

// VoucherWrite describes a voucher create or alter import.
type VoucherWrite struct {
	Action    string // "Create" or "Alter"
	Kind      string
	Number    string
	Date      time.Time
	Narration string
	Lines     []LedgerLine
}

// BuildVoucherEnvelope constructs an import request that creates or alters a
// voucher with its double-entry ledger lines.
func BuildVoucherEnvelope(company string, w VoucherWrite) string {
	var lines strings.Builder
	for _, line := range w.Lines {
		deemed := "No"
		if line.DeemedPositive {
			deemed = "Yes"
		}
		lines.WriteString("<ALLLEDGERENTRIES.LIST>" +
			"<LEDGERNAME>" + escape(line.LedgerName) + "</LEDGERNAME>" +
			"<ISDEEMEDPOSITIVE>" + deemed + "</ISDEEMEDPOSITIVE>" +
			"<AMOUNT>" + line.Amount.String() + "</AMOUNT>" +
			"</ALLLEDGERENTRIES.LIST>")
	}

	voucher := `<VOUCHER VCHTYPE="` + escape(w.Kind) + `" ACTION="` + escape(w.Action) + `">` +
		"<DATE>" + w.Date.Format(wireDateFormat) + "</DATE>" +
		"<VOUCHERTYPENAME>" + escape(w.Kind) + "</VOUCHERTYPENAME>" +
		"<VOUCHERNUMBER>" + escape(w.Number) + "</VOUCHERNUMBER>" +
		"<NARRATION>" + escape(w.Narration) + "</NARRATION>" +
		lines.String() +
		"</VOUCHER>"

	return buildImportEnvelope(company, voucher)
}

// BuildVoucherDeleteEnvelope constructs an import request that deletes the
// voucher identified by kind, number and date.
func BuildVoucherDeleteEnvelope(company, kind, number string, date time.Time) string {
	voucher := `<VOUCHER VCHTYPE="` + escape(kind) + `" ACTION="Delete">` +
		"<DATE>" + date.Format(wireDateFormat) + "</DATE>" +
		"<VOUCHERTYPENAME>" + escape(kind) + "</VOUCHERTYPENAME>" +
		"<VOUCHERNUMBER>" + escape(number) + "</VOUCHERNUMBER>" +
		"</VOUCHER>"
	return buildImportEnvelope(company, voucher)
}

// BuildLedgerCreateEnvelope constructs an import request that creates a ledger
// under the given parent group.
func BuildLedgerCreateEnvelope(company, name, parentGroup string) string {
	ledger := `<LEDGER NAME="` + escape(name) + `" ACTION="Create">` +
		"<NAME>" + escape(name) + "</NAME>" +
		"<PARENT>" + escape(parentGroup) + "</PARENT>" +
		"</LEDGER>"
	return buildImportEnvelope(company, ledger)
}

// BuildLedgerAlterEnvelope constructs an import request that alters the named
// ledger's fields. Fields are emitted in sorted order; names must already be
// validated against the remote allow-list.
func BuildLedgerAlterEnvelope(company, name string, fields remote.LedgerFieldSet) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var body strings.Builder
	for _, k := range keys {
		body.WriteString("<" + k + ">" + escape(fields[k]) + "</" + k + ">")
	}

	ledger := `<LEDGER NAME="` + escape(name) + `" ACTION="Alter">` + body.String() + "</LEDGER>"
	return buildImportEnvelope(company, ledger)
}

func buildImportEnvelope(company, message string) string {
	return "<ENVELOPE><HEADER><TALLYREQUEST>Import Data</TALLYREQUEST></HEADER>" +
		"<BODY><IMPORTDATA><REQUESTDESC>" +
		"<REPORTNAME>All Masters</REPORTNAME>" +
		"<STATICVARIABLES><SVCURRENTCOMPANY>" + escape(company) + "</SVCURRENTCOMPANY></STATICVARIABLES>" +
		"</REQUESTDESC><REQUESTDATA>" +
		"<TALLYMESSAGE>" + message + "</TALLYMESSAGE>" +
		"</REQUESTDATA></IMPORTDATA></BODY></ENVELOPE>"
}

// ---------------------------------------------------------------------------
// Response sanitization
// ---------------------------------------------------------------------------

// isLegalXMLRune reports whether r falls in the XML 1.0 legal character
// ranges: tab, newline, carriage return, U+0020–U+D7FF, U+E000–U+FFFD,
// U+10000–U+10FFFF.
func isLegalXMLRune(r rune) bool {
	return r == 0x9 || r == 0xA || r == 0xD ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

// Sanitize strips every character outside the XML 1.0 legal ranges and deletes
// every numeric character reference that decodes to an illegal character. It
// must run before any parse attempt because the remote system is known to emit
// structurally invalid XML. Sanitize is idempotent: legal text and legal
// references pass through byte-for-byte, and sanitizing sanitized text is a
// no-op.
func Sanitize(s string) string {
	// Deleting a character can splice its neighbors into a reference that did
	// not exist before (e.g. a raw NUL inside "&#\x000;"), so one pass is not
	// enough. Each pass only deletes, so iteration reaches a fixpoint.
	for {
		out := sanitizePass(s)
		if out == s {
			return out
		}
		s = out
	}
}

func sanitizePass(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '&' && i+1 < len(s) && s[i+1] == '#' {
			if end, r, ok := parseCharRef(s, i); ok {
				if isLegalXMLRune(r) {
					b.WriteString(s[i:end])
				}
				i = end
				continue
			}
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			// invalid UTF-8 byte, drop it
			i++
			continue
		}
		if isLegalXMLRune(r) {
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

// parseCharRef parses a numeric character reference (&#NN; or &#xHH;)
// starting at index i. It returns the index just past the terminating
// semicolon and the decoded rune. A malformed reference returns ok=false and
// is treated as ordinary text.
func parseCharRef(s string, i int) (end int, r rune, ok bool) {
	j := i + 2
	base := 10
	if j < len(s) && (s[j] == 'x' || s[j] == 'X') {
		base = 16
		j++
	}
	start := j
	for j < len(s) && s[j] != ';' {
		if j-start >= 8 {
			return 0, 0, false
		}
		c := s[j]
		switch {
		case c >= '0' && c <= '9':
		case base == 16 && ((c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')):
		default:
			return 0, 0, false
		}
		j++
	}
	if j >= len(s) || j == start {
		return 0, 0, false
	}
	val, err := strconv.ParseInt(s[start:j], base, 32)
	if err != nil {
		return 0, 0, false
	}
	return j + 1, rune(val), true
}

// ---------------------------------------------------------------------------
// Flattening
// ---------------------------------------------------------------------------

// element is a parsed XML element subtree.
type element struct {
	name     string
	text     string
	children []*element
}

// parseElement consumes tokens until the matching end element.
func parseElement(d *xml.Decoder, start xml.StartElement) (*element, error) {
	el := &element{name: start.Name.Local}
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := parseElement(d, t)
			if err != nil {
				return nil, err
			}
			el.children = append(el.children, child)
		case xml.CharData:
			el.text += string(t)
		case xml.EndElement:
			return el, nil
		}
	}
}

// normalizeKey maps a tag name to the flat attribute-name convention:
// uppercased, spaces replaced by underscore.
func normalizeKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, " ", "_"))
}

// Flatten maps a parsed element to a flat key-to-text row. Leaf children map
// to their own tag name; nested children recurse with the parent tag as a key
// prefix, so different source shapes normalize to one convention.
func Flatten(el *element) remote.Row {
	row := remote.Row{}
	flattenInto(el, "", row)
	return row
}

func flattenInto(el *element, prefix string, out remote.Row) {
	for _, child := range el.children {
		key := normalizeKey(child.name)
		if len(child.children) > 0 {
			flattenInto(child, prefix+key+"_", out)
		} else {
			out[prefix+key] = strings.TrimSpace(child.text)
		}
	}
}

// ParseRows sanitizes the response body and extracts every element named
// rowTag (case-insensitive) as a flattened row.
func ParseRows(body, rowTag string) ([]remote.Row, error) {
	d := xml.NewDecoder(strings.NewReader(Sanitize(body)))
	rows := make([]remote.Row, 0)
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", remote.ErrInvalidResponse, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !strings.EqualFold(start.Name.Local, rowTag) {
			continue
		}
		el, err := parseElement(d, start)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", remote.ErrInvalidResponse, err)
		}
		rows = append(rows, Flatten(el))
	}
}
