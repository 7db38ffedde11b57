package interfaces

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationInput_Validate(t *testing.T) {
	valid := RegistrationInput{Name: "Alice", Email: "alice@example.com", DocumentHash: "abc12345"}
	require.Nil(t, valid.Validate())

	tests := []struct {
		name   string
		input  RegistrationInput
		fields []string
	}{
		{
			name:   "empty name",
			input:  RegistrationInput{Name: "", Email: "alice@example.com", DocumentHash: "abc12345"},
			fields: []string{FieldName},
		},
		{
			name:   "bad email",
			input:  RegistrationInput{Name: "Alice", Email: "alice.example.com", DocumentHash: "abc12345"},
			fields: []string{FieldEmail},
		},
		{
			name:   "short hash",
			input:  RegistrationInput{Name: "Alice", Email: "alice@example.com", DocumentHash: "abc1234"},
			fields: []string{FieldDocumentHash},
		},
		{
			name:   "everything wrong",
			input:  RegistrationInput{},
			fields: []string{FieldName, FieldEmail, FieldDocumentHash},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.input.Validate()
			require.Len(t, errs, len(tt.fields))
			for _, field := range tt.fields {
				assert.Contains(t, errs, field)
			}
		})
	}
}

func TestValidEmail(t *testing.T) {
	for _, email := range []string{"a@b.co", "alice@example.com", "first.last+tag@mail.example.org"} {
		assert.True(t, ValidEmail(email), email)
	}

	for _, email := range []string{"", "alice", "alice@", "@example.com", "alice@example", "al ice@example.com", "alice@@example.com", "alice@exa mple.com",
		"a\vb@c.de", "a\u00a0b@c.de", "a@b.c\u2028o", "a\u2029b@c.de", "\ufeffa@b.co", "a@b\u3000c.de"} {
		assert.False(t, ValidEmail(email), email)
	}
}

func TestDocumentHashLengthBoundary(t *testing.T) {
	base := RegistrationInput{Name: "Alice", Email: "alice@example.com"}

	for n := 0; n < MinDocumentHashLength; n++ {
		base.DocumentHash = strings.Repeat("a", n)
		assert.Contains(t, base.Validate(), FieldDocumentHash, "length %d", n)
	}

	for _, n := range []int{MinDocumentHashLength, MinDocumentHashLength + 1, 66} {
		base.DocumentHash = strings.Repeat("a", n)
		assert.Nil(t, base.Validate(), "length %d", n)
	}

	// Length is counted in characters, not bytes.
	base.DocumentHash = "ééééé"
	assert.Contains(t, base.Validate(), FieldDocumentHash)
	base.DocumentHash = strings.Repeat("é", MinDocumentHashLength-1)
	assert.Contains(t, base.Validate(), FieldDocumentHash)
	base.DocumentHash = strings.Repeat("é", MinDocumentHashLength)
	assert.Nil(t, base.Validate())
	base.DocumentHash = "旅券" + strings.Repeat("9", MinDocumentHashLength-2)
	assert.Nil(t, base.Validate())
}

func TestValidationErrors_Error(t *testing.T) {
	errs := RegistrationInput{}.Validate()
	msg := errs.Error()
	assert.True(t, strings.Index(msg, FieldDocumentHash) < strings.Index(msg, FieldEmail))
	assert.True(t, strings.Index(msg, FieldEmail) < strings.Index(msg, FieldName))
}

func TestUserRecord_IsEmpty(t *testing.T) {
	assert.True(t, UserRecord{}.IsEmpty())
	assert.False(t, UserRecord{Name: "Alice"}.IsEmpty())
	assert.False(t, UserRecord{IsVerified: true}.IsEmpty())
}

func TestNewStoreLocation(t *testing.T) {
	loc, err := NewStoreLocation("s3://docs-bucket/identity?region=eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "s3", loc.Scheme)
	assert.Equal(t, "docs-bucket", loc.Host)
	assert.Equal(t, "eu-west-1", loc.GetParam("region"))

	_, err = NewStoreLocation("github://owner/repo")
	assert.ErrorIs(t, err, ErrInvalidLocationURI)
}

func TestContentIDFromHex(t *testing.T) {
	id := ComputeID([]byte("passport scan"))

	parsed, err := NewContentIDFromHex("0x" + id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = NewContentIDFromHex("abcd")
	assert.Error(t, err)
}
