package validate

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduit-api/internal/domain"
)

type signup struct {
	Username string  `json:"username" validate:"notblank,max=16"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Bio      *string `json:"bio" validate:"omitempty,max=10"`
}

type signupRequest struct {
	User signup `json:"user"`
}

// draft has the shape of signup without any rules, so only decoding can fail.
type draft struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Bio      *string `json:"bio"`
}

type draftRequest struct {
	User draft `json:"user"`
}

func TestStructReportsFailuresInDeclarationOrder(t *testing.T) {
	err := Struct(signup{Email: "nope", Password: "short"})
	require.Error(t, err)

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.KindValidation, de.Kind)
	assert.Equal(t, []string{
		"username can't be blank",
		"email is invalid",
		"password is too short (minimum is 8 characters)",
	}, de.Messages())
}

func TestStructAcceptsValidInput(t *testing.T) {
	bio := "hi"
	assert.NoError(t, Struct(signup{Username: "alice", Email: "alice@x.com", Password: "secret123", Bio: &bio}))
}

func TestStructChecksOptionalPointerWhenSet(t *testing.T) {
	bio := "this bio is far too long"
	err := Struct(signup{Username: "alice", Email: "alice@x.com", Password: "secret123", Bio: &bio})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Contains(t, err.Error(), "bio is too long")
}

func TestStructBlankStringIsRejected(t *testing.T) {
	err := Struct(signup{Username: "   ", Email: "alice@x.com", Password: "secret123"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestDecodeBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"username":"alice"}`},
		{name: "empty body", body: ``},
		{name: "whitespace body", body: " \n"},
		{name: "wrong type", body: `{"username":42}`, wantErr: "username must be a string"},
		{name: "malformed", body: `{"username":`, wantErr: "body must be valid JSON"},
		{name: "trailing document", body: `{"username":"alice"}{"username":"bob"}`, wantErr: "body must be valid JSON"},
		{name: "trailing garbage", body: `{"username":"alice"} xyz`, wantErr: "body must be valid JSON"},
		{name: "not an object", body: `[1,2]`, wantErr: "body must be an object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode[draft](strings.NewReader(tt.body))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.KindValidation))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeReportsEveryTypeFailure(t *testing.T) {
	_, err := Decode[draftRequest](strings.NewReader(`{"user":{"password":7,"username":42,"email":true}}`))

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, []string{
		"username must be a string",
		"email must be a string",
		"password must be a string",
	}, de.Messages())
}

func TestDecodeKeepsWellTypedFields(t *testing.T) {
	out, err := Decode[draftRequest](strings.NewReader(`{"user":{"username":"alice","email":3}}`))
	require.Error(t, err)
	assert.Equal(t, "alice", out.User.Username)
}

func TestDecodeNestedTypeError(t *testing.T) {
	_, err := Decode[draftRequest](strings.NewReader(`{"user":{"email":["a"]}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email must be a string")

	_, err = Decode[draftRequest](strings.NewReader(`{"user":"alice"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user must be an object")
}

func TestDecodeMatchesKeysCaseInsensitively(t *testing.T) {
	out, err := Decode[draft](strings.NewReader(`{"UserName":"alice"}`))
	require.NoError(t, err)
	assert.Equal(t, "alice", out.Username)
}

func TestDecodeRunsValidation(t *testing.T) {
	out, err := Decode[signup](strings.NewReader(`{"username":"bob","email":"bob@x.com","password":"password1"}`))
	require.NoError(t, err)
	assert.Equal(t, "bob", out.Username)

	_, err = Decode[signup](strings.NewReader(`{}`))
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Len(t, de.Messages(), 3)
}

func TestDecodeMergesTypeAndRuleFailuresInFieldOrder(t *testing.T) {
	_, err := Decode[signupRequest](strings.NewReader(`{"user":{"email":true,"username":42}}`))

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, []string{
		"username must be a string",
		"email must be a string",
		"password can't be blank",
	}, de.Messages())
}

func TestDecodeSkipsRulesUnderAFailedObject(t *testing.T) {
	_, err := Decode[signupRequest](strings.NewReader(`{"user":[]}`))

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, []string{"user must be an object"}, de.Messages())
}

func TestDecodeRejectsOversizedBody(t *testing.T) {
	body := `{"username":"` + strings.Repeat("a", 64) + `"}`
	r := http.MaxBytesReader(httptest.NewRecorder(), io.NopCloser(strings.NewReader(body)), 16)

	_, err := Decode[signup](r)

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.KindValidation, de.Kind)
	assert.Equal(t, []string{"body is too large"}, de.Messages())
}
