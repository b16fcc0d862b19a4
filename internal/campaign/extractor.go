package campaign

import (
	"regexp"
	"strings"

	"github.com/ignite/bulkmail/internal/pkg/logger"
)

// emailFieldPriority is the fixed, ordered list of candidate columns an
// address may live in. The first non-empty one wins; records with none are
// skipped (expected gaps in source data, not failures).
var emailFieldPriority = []string{
	"email",
	"emailaddress",
	"custentity_email",
	"custentity_tfc_cust_purchasing_email",
	"email.CUSTRECORD",
}

// fallbackDisplayName is used when a record carries no name-like field.
const fallbackDisplayName = "Customer"

// multiAddressSplit matches any run of the delimiters operators paste
// between addresses in a single field.
var multiAddressSplit = regexp.MustCompile(`[,;\n]+`)

// ExtractRecipients produces zero or more normalized recipients from one raw
// record. A field holding "a@x.com, b@x.com;c@x.com" yields one recipient
// per address, all sharing the record's ID and display name. No syntax
// validation happens here; the mail API is the sole arbiter of
// deliverability.
func ExtractRecipients(rec Record) []NormalizedRecipient {
	var raw string
	for _, field := range emailFieldPriority {
		if v := rec.Field(field); v != "" {
			raw = v
			break
		}
	}
	if raw == "" {
		logger.Debug("record has no email address", "record_id", rec.ID(), "record_type", rec.Type())
		return nil
	}

	name := displayName(rec)

	var out []NormalizedRecipient
	for _, piece := range multiAddressSplit.Split(raw, -1) {
		email := strings.TrimSpace(piece)
		if email == "" {
			continue
		}
		out = append(out, NormalizedRecipient{
			Email:          email,
			DisplayName:    name,
			SourceRecordID: rec.ID(),
		})
	}
	return out
}

// displayName resolves the recipient's name with a fixed precedence that
// does not depend on which email column matched.
func displayName(rec Record) string {
	if v := rec.Field("entityid"); v != "" {
		return v
	}
	if v := rec.Field("companyname"); v != "" {
		return v
	}
	if v := rec.Field("altname"); v != "" {
		return v
	}
	if first := rec.Field("firstname"); first != "" {
		return strings.TrimSpace(first + " " + rec.Field("lastname"))
	}
	return fallbackDisplayName
}
