package pii

import (
	"testing"

	"github.com/leapstack-labs/mclineage/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		field        string
		fieldType    string
		wantCategory core.Sensitivity
		wantReasons  []string
	}{
		{
			name:         "plain field",
			field:        "OrderID",
			fieldType:    "Number",
			wantCategory: core.SensitivityNone,
		},
		{
			name:         "email by name",
			field:        "PrimaryEmail",
			fieldType:    "Text",
			wantCategory: core.SensitivityEmail,
			wantReasons:  []string{ReasonEmail},
		},
		{
			name:         "hyphenated e-mail",
			field:        "E-Mail Address",
			fieldType:    "Text",
			wantCategory: core.SensitivityEmail,
			wantReasons:  []string{ReasonEmail},
		},
		{
			name:         "email by declared type",
			field:        "Contact",
			fieldType:    "EmailAddress",
			wantCategory: core.SensitivityEmail,
			wantReasons:  []string{ReasonEmail, "type:EmailAddress"},
		},
		{
			name:         "email name and type",
			field:        "EmailAddress",
			fieldType:    "EmailAddress",
			wantCategory: core.SensitivityEmail,
			wantReasons:  []string{ReasonEmail, "type:EmailAddress"},
		},
		{
			name:         "mobile number",
			field:        "MobileNumber",
			fieldType:    "Text",
			wantCategory: core.SensitivityPhone,
			wantReasons:  []string{ReasonPhone},
		},
		{
			name:         "phone type forces phone",
			field:        "Contact",
			fieldType:    "Phone",
			wantCategory: core.SensitivityPhone,
			wantReasons:  []string{"type:Phone"},
		},
		{
			name:         "ssn is identifier",
			field:        "ssn_number",
			fieldType:    "Text",
			wantCategory: core.SensitivityIdentifier,
			wantReasons:  []string{ReasonIdentifier},
		},
		{
			name:         "social security",
			field:        "SocialSecurity",
			fieldType:    "Text",
			wantCategory: core.SensitivityIdentifier,
			wantReasons:  []string{ReasonIdentifier},
		},
		{
			name:         "identifier outranks phone and email",
			field:        "email_phone_ssn",
			fieldType:    "Text",
			wantCategory: core.SensitivityIdentifier,
			wantReasons:  []string{ReasonEmail, ReasonPhone, ReasonIdentifier},
		},
		{
			name:         "phone outranks email type",
			field:        "PhoneBackup",
			fieldType:    "EmailAddress",
			wantCategory: core.SensitivityPhone,
			wantReasons:  []string{ReasonPhone, ReasonEmail, "type:EmailAddress"},
		},
		{
			name:         "case insensitive",
			field:        "MOBILE",
			fieldType:    "text",
			wantCategory: core.SensitivityPhone,
			wantReasons:  []string{ReasonPhone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.field, tt.fieldType)
			assert.Equal(t, tt.wantCategory, got.Category)
			assert.Equal(t, tt.wantReasons, got.Reasons)
		})
	}
}

func TestClassifyFields_Idempotent(t *testing.T) {
	preset := core.Classification{Category: core.SensitivityNone, Reasons: []string{"reviewed"}}
	fields := []core.Field{
		{Name: "EmailAddress", Type: "EmailAddress"},
		{Name: "ssn", Type: "Text", Sensitivity: &preset},
	}

	ClassifyFields(fields)
	first := *fields[0].Sensitivity
	ClassifyFields(fields)

	require.NotNil(t, fields[0].Sensitivity)
	assert.Equal(t, first, *fields[0].Sensitivity)
	assert.Equal(t, core.SensitivityEmail, fields[0].Sensitivity.Category)
	assert.Equal(t, core.SensitivityNone, fields[1].Sensitivity.Category, "existing classification kept")
}

func TestSummarize(t *testing.T) {
	fields := []core.Field{
		{Name: "Email", Type: "EmailAddress"},
		{Name: "Phone", Type: "Phone"},
		{Name: "SSN", Type: "Text"},
		{Name: "AltEmail", Type: "Text"},
		{Name: "Id", Type: "Number"},
		{Name: "Unclassified"},
	}
	ClassifyFields(fields[:5])

	s := Summarize(fields)
	assert.Equal(t, Summary{Email: 2, Phone: 1, Identifier: 1}, s)
	assert.Equal(t, 4, s.Total())
}
