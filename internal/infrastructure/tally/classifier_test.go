package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallybridge/backend/internal/domain/remote"
)

func TestClassify_Accepted(t *testing.T) {
	body := `<ENVELOPE><BODY><IMPORTRESULT>
		<CREATED>1</CREATED><ALTERED>0</ALTERED><DELETED>0</DELETED><ERRORS>0</ERRORS>
		<LASTVCHID>4821</LASTVCHID>
	</IMPORTRESULT></BODY></ENVELOPE>`

	result := Classify(body)
	assert.Equal(t, remote.OutcomeAccepted, result.Outcome)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, "4821", result.RemoteID)
	assert.Empty(t, result.LineErrors)
}

func TestClassify_DeletedCountsAsAccepted(t *testing.T) {
	body := `<ENVELOPE><CREATED>0</CREATED><ALTERED>0</ALTERED><DELETED>1</DELETED></ENVELOPE>`
	result := Classify(body)
	assert.Equal(t, remote.OutcomeAccepted, result.Outcome)
	assert.Equal(t, 1, result.Deleted)
}

func TestClassify_LineErrorAlwaysRejects(t *testing.T) {
	// line errors win even when counters claim success
	body := `<ENVELOPE>
		<CREATED>1</CREATED><ALTERED>2</ALTERED>
		<LINEERROR>Invalid ledger</LINEERROR>
		<LINEERROR>Voucher totals do not balance</LINEERROR>
	</ENVELOPE>`

	result := Classify(body)
	assert.Equal(t, remote.OutcomeRejected, result.Outcome)
	require.Len(t, result.LineErrors, 2)
	assert.Equal(t, "Invalid ledger", result.LineErrors[0])
}

func TestClassify_ErrorCounterWithoutLineDetailRejects(t *testing.T) {
	body := `<ENVELOPE><CREATED>0</CREATED><ERRORS>2</ERRORS></ENVELOPE>`
	result := Classify(body)
	assert.Equal(t, remote.OutcomeRejected, result.Outcome)
	require.Len(t, result.LineErrors, 1)
	assert.Contains(t, result.LineErrors[0], "2 errors")
}

func TestClassify_Ignored(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantReason string
	}{
		{"zero counters with status block", `<ENVELOPE><CREATED>0</CREATED><ALTERED>0</ALTERED><DELETED>0</DELETED><ERRORS>0</ERRORS></ENVELOPE>`, "status block present"},
		{"no status indicator at all", `<ENVELOPE><BODY><DATA></DATA></BODY></ENVELOPE>`, "no status block"},
		{"unparsable counters default to zero", `<ENVELOPE><CREATED>abc</CREATED></ENVELOPE>`, "status block present"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(tt.body)
			assert.Equal(t, remote.OutcomeIgnored, result.Outcome)
			assert.Contains(t, result.FaultReason, tt.wantReason)
		})
	}
}

func TestClassify_TransportFault(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"whitespace body", "  \n "},
		{"truncated xml", "<ENVELOPE><CREATED>1</CREATED>"},
		{"not xml at all", "connection reset by peer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(tt.body)
			assert.Equal(t, remote.OutcomeTransportFault, result.Outcome, "body %q", tt.body)
			assert.NotEmpty(t, result.FaultReason)
		})
	}
}

func TestClassify_SanitizesBeforeClassifying(t *testing.T) {
	body := "<ENVELOPE><LINEERROR>bad\x01 ledger&#0;</LINEERROR></ENVELOPE>"
	result := Classify(body)
	assert.Equal(t, remote.OutcomeRejected, result.Outcome)
	require.Len(t, result.LineErrors, 1)
	assert.Equal(t, "bad ledger", result.LineErrors[0])
}
