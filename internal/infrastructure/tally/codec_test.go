package tally

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallybridge/backend/internal/domain/remote"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean text untouched", "<A>hello</A>", "<A>hello</A>"},
		{"tab newline cr kept", "a\tb\nc\rd", "a\tb\nc\rd"},
		{"control characters stripped", "he\x00ll\x1fo\x0b", "hello"},
		{"legal numeric reference kept", "a&#65;b", "a&#65;b"},
		{"legal hex reference kept", "a&#x41;b", "a&#x41;b"},
		{"illegal numeric reference deleted", "a&#0;b", "ab"},
		{"illegal hex reference deleted", "a&#x1F;b", "ab"},
		{"malformed reference left as text", "a&#zz;b", "a&#zz;b"},
		{"unterminated reference left as text", "a&#12", "a&#12"},
		{"surrogate range reference deleted", "a&#xD800;b", "ab"},
		{"bare ampersand kept", "a&b", "a&b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"<A>he\x01llo &#0; &#65; wor\x02ld</A>",
		"plain text",
		"&#x1F;&#x41;&#zz;",
		"\x00\x01\x02",
		"",
		// deleting the raw NUL splices the remaining bytes into an illegal
		// reference that must not survive the result
		"<A>&#\x000;</A>",
		"&#\x00x1F;",
		"&\x00#0;",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "sanitizing sanitized output must be a no-op for %q", in)
	}
}

func TestSanitize_ReferenceFormedByDeletion(t *testing.T) {
	// "&#" + NUL + "0;" single-pass sanitization would keep "&#0;", an illegal
	// reference assembled by dropping the NUL
	got := Sanitize("<A>&#\x000;</A>")

	assert.Equal(t, "<A></A>", got)
	assert.Equal(t, got, Sanitize(got))
}

func TestBuildExportEnvelope(t *testing.T) {
	env := BuildExportEnvelope("Day Book", `Sharma & Sons "Pvt"`, map[string]string{
		"SVFROMDATE": "20260401",
	})

	assert.Contains(t, env, "<TALLYREQUEST>Export Data</TALLYREQUEST>")
	assert.Contains(t, env, "<REPORTNAME>Day Book</REPORTNAME>")
	assert.Contains(t, env, "<SVFROMDATE>20260401</SVFROMDATE>")
	// user-supplied company name must be escaped
	assert.Contains(t, env, "Sharma &amp; Sons &quot;Pvt&quot;")
	assert.NotContains(t, env, `Sharma & Sons`)
}

func TestBuildVoucherEnvelope(t *testing.T) {
	date := time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC)
	env := BuildVoucherEnvelope("Co", VoucherWrite{
		Action:    "Create",
		Kind:      "Receipt",
		Number:    "V-1",
		Date:      date,
		Narration: "cash < received",
		Lines: []LedgerLine{
			{LedgerName: "Cash", Amount: decimal.NewFromInt(-1000), DeemedPositive: true},
			{LedgerName: "Sharma", Amount: decimal.NewFromInt(1000), DeemedPositive: false},
		},
	})

	assert.Contains(t, env, "<TALLYREQUEST>Import Data</TALLYREQUEST>")
	assert.Contains(t, env, `<VOUCHER VCHTYPE="Receipt" ACTION="Create">`)
	assert.Contains(t, env, "<DATE>20260412</DATE>")
	assert.Contains(t, env, "<NARRATION>cash &lt; received</NARRATION>")
	assert.Contains(t, env, "<ISDEEMEDPOSITIVE>Yes</ISDEEMEDPOSITIVE><AMOUNT>-1000</AMOUNT>")
	assert.Contains(t, env, "<ISDEEMEDPOSITIVE>No</ISDEEMEDPOSITIVE><AMOUNT>1000</AMOUNT>")

	// the envelope itself must parse
	_, err := ParseRows(env, "VOUCHER")
	assert.NoError(t, err)
}

func TestBuildLedgerAlterEnvelope_SortedFields(t *testing.T) {
	env := BuildLedgerAlterEnvelope("Co", "Sharma", remote.LedgerFieldSet{
		"PARENT": "Sundry Debtors",
		"EMAIL":  "s@example.com",
	})
	assert.Less(t, strings.Index(env, "<EMAIL>"), strings.Index(env, "<PARENT>"))
	assert.Contains(t, env, `<LEDGER NAME="Sharma" ACTION="Alter">`)
}

func TestParseRows_FlatAndNestedShapes(t *testing.T) {
	body := `<ENVELOPE>
		<LEDGER><NAME>Sharma</NAME><PARENT>Sundry Debtors</PARENT><CLOSINGBALANCE>150.00</CLOSINGBALANCE></LEDGER>
		<LEDGER><NAME>Verma</NAME><CONTACT><PHONE>12345</PHONE><EMAIL>v@example.com</EMAIL></CONTACT></LEDGER>
	</ENVELOPE>`

	rows, err := ParseRows(body, "LEDGER")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Sharma", rows[0]["NAME"])
	assert.Equal(t, "Sundry Debtors", rows[0]["PARENT"])
	assert.Equal(t, "150.00", rows[0]["CLOSINGBALANCE"])

	// nested structure prefixes child keys with the parent tag
	assert.Equal(t, "Verma", rows[1]["NAME"])
	assert.Equal(t, "12345", rows[1]["CONTACT_PHONE"])
	assert.Equal(t, "v@example.com", rows[1]["CONTACT_EMAIL"])
}

func TestParseRows_SanitizesBeforeParsing(t *testing.T) {
	body := "<ENVELOPE><LEDGER><NAME>Sha\x02rma&#0;</NAME></LEDGER></ENVELOPE>"
	rows, err := ParseRows(body, "LEDGER")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Sharma", rows[0]["NAME"])
}

func TestParseRows_MalformedAfterSanitize(t *testing.T) {
	_, err := ParseRows("<ENVELOPE><LEDGER>", "LEDGER")
	assert.ErrorIs(t, err, remote.ErrInvalidResponse)
}
