package tally

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tallybridge/backend/internal/domain/remote"
)

// Classify inspects a write-operation response and decides how the remote
// system reacted. Precedence: any line error means Rejected regardless of the
// counters; a positive counter sum means Accepted; zero counters with no
// status indicator means Ignored, the remote system's silent accept-and-drop.
// A body that fails to parse even after sanitization is a transport fault so
// the caller can retry it.
func Classify(body string) *remote.ImportResult {
	sanitized := Sanitize(body)
	if strings.TrimSpace(sanitized) == "" {
		return &remote.ImportResult{
			Outcome:     remote.OutcomeTransportFault,
			FaultReason: "empty response body",
		}
	}

	d := xml.NewDecoder(strings.NewReader(sanitized))

	result := &remote.ImportResult{}
	sawStatus := false
	sawElement := false
	errorCount := 0

	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &remote.ImportResult{
				Outcome:     remote.OutcomeTransportFault,
				FaultReason: err.Error(),
			}
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawElement = true
		switch strings.ToUpper(start.Name.Local) {
		case "LINEERROR":
			text := collectText(d)
			if text != "" {
				result.LineErrors = append(result.LineErrors, text)
			}
		case "CREATED":
			result.Created = collectInt(d)
			sawStatus = true
		case "ALTERED":
			result.Altered = collectInt(d)
			sawStatus = true
		case "DELETED":
			result.Deleted = collectInt(d)
			sawStatus = true
		case "ERRORS":
			errorCount = collectInt(d)
			sawStatus = true
		case "LASTVCHID":
			result.RemoteID = collectText(d)
		}
	}

	if !sawElement {
		return &remote.ImportResult{
			Outcome:     remote.OutcomeTransportFault,
			FaultReason: "response contains no XML elements",
		}
	}

	switch {
	case len(result.LineErrors) > 0:
		result.Outcome = remote.OutcomeRejected
	case errorCount > 0:
		result.Outcome = remote.OutcomeRejected
		result.LineErrors = append(result.LineErrors,
			fmt.Sprintf("remote reported %d errors without line detail", errorCount))
	case result.Total() > 0:
		result.Outcome = remote.OutcomeAccepted
	default:
		// Zero counters with or without a status block: the remote system
		// either had nothing to do or silently dropped the payload, and the
		// response cannot tell the two apart. Surfaced as Ignored so operators
		// can distinguish "remote said no" from "remote said nothing"; the
		// diagnostics record which shape arrived.
		result.Outcome = remote.OutcomeIgnored
		if sawStatus {
			result.FaultReason = "status block present but all counters zero"
		} else {
			result.FaultReason = "response carries no status block"
		}
	}
	return result
}

// collectText gathers the character data up to the current element's end tag.
func collectText(d *xml.Decoder) string {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(t)
		}
	}
	return strings.TrimSpace(b.String())
}

// collectInt reads the current element's text as an integer, defaulting to 0
// when missing or unparsable.
func collectInt(d *xml.Decoder) int {
	n, err := strconv.Atoi(collectText(d))
	if err != nil {
		return 0
	}
	return n
}
