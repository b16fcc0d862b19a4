package campaign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecord is a map-backed Record for tests.
type fakeRecord struct {
	id      string
	recType string
	fields  map[string]string
}

func (r fakeRecord) ID() string   { return r.id }
func (r fakeRecord) Type() string { return r.recType }
func (r fakeRecord) Field(name string) string {
	return r.fields[name]
}

func TestExtractSplitsMultiAddressField(t *testing.T) {
	rec := fakeRecord{
		id:     "42",
		fields: map[string]string{"email": "a@x.com, b@x.com;c@x.com\nd@x.com", "companyname": "Acme"},
	}

	got := ExtractRecipients(rec)
	require.Len(t, got, 4)

	emails := make([]string, len(got))
	for i, r := range got {
		emails[i] = r.Email
		assert.Equal(t, "42", r.SourceRecordID)
		assert.Equal(t, "Acme", r.DisplayName)
	}
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com"}, emails)
}

func TestExtractNoEmailFieldYieldsNothing(t *testing.T) {
	rec := fakeRecord{id: "7", fields: map[string]string{"companyname": "Acme"}}
	assert.Empty(t, ExtractRecipients(rec))
}

func TestExtractFieldPriority(t *testing.T) {
	rec := fakeRecord{
		id: "9",
		fields: map[string]string{
			"emailaddress":     "alt@x.com",
			"custentity_email": "custom@x.com",
		},
	}

	got := ExtractRecipients(rec)
	require.Len(t, got, 1)
	assert.Equal(t, "alt@x.com", got[0].Email, "emailaddress outranks custom entity fields")
}

func TestExtractTrimsAndDropsEmptyPieces(t *testing.T) {
	rec := fakeRecord{id: "1", fields: map[string]string{"email": " a@x.com ,, ;\n b@x.com ,"}}

	got := ExtractRecipients(rec)
	require.Len(t, got, 2)
	assert.Equal(t, "a@x.com", got[0].Email)
	assert.Equal(t, "b@x.com", got[1].Email)
}

func TestDisplayNamePrecedence(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		want   string
	}{
		{"entityid wins", map[string]string{"entityid": "E-1", "companyname": "Acme", "firstname": "Jo"}, "E-1"},
		{"companyname next", map[string]string{"companyname": "Acme", "altname": "Alt"}, "Acme"},
		{"altname next", map[string]string{"altname": "Alt", "firstname": "Jo"}, "Alt"},
		{"first and last joined", map[string]string{"firstname": "Jo", "lastname": "Doe"}, "Jo Doe"},
		{"last name may be empty", map[string]string{"firstname": "Jo"}, "Jo"},
		{"fallback label", map[string]string{}, "Customer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fields["email"] = "x@y.com"
			got := ExtractRecipients(fakeRecord{id: "1", fields: tt.fields})
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].DisplayName)
		})
	}
}

func TestDisplayNameIndependentOfMatchedEmailField(t *testing.T) {
	// Same name fields, different email columns: the resolved name must
	// not change.
	base := map[string]string{"companyname": "Acme"}

	withPrimary := map[string]string{"email": "a@x.com"}
	withCustom := map[string]string{"custentity_tfc_cust_purchasing_email": "a@x.com"}
	for k, v := range base {
		withPrimary[k] = v
		withCustom[k] = v
	}

	first := ExtractRecipients(fakeRecord{id: "1", fields: withPrimary})
	second := ExtractRecipients(fakeRecord{id: "1", fields: withCustom})
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].DisplayName, second[0].DisplayName)
}

func TestExtractDoesNotValidateSyntax(t *testing.T) {
	rec := fakeRecord{id: "1", fields: map[string]string{"email": "not-an-address"}}
	got := ExtractRecipients(rec)
	require.Len(t, got, 1)
	assert.Equal(t, "not-an-address", got[0].Email, "deliverability is the API's call, not ours")
}
