package policy

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/nimbusfs/uplink/credential"
	"github.com/nimbusfs/uplink/errors"
)

// UploadToken is a signed upload policy in its wire form
// "accessKey:signature:base64(policyJSON)". A token constructed from a
// policy and one parsed back from its string form expose the same policy.
type UploadToken struct {
	token     string
	accessKey string
	encoded   string
}

// FromPolicy signs policy with cred and returns the resulting token.
func FromPolicy(p UploadPolicy, cred credential.Credential) (*UploadToken, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	token := cred.SignWithData(raw)
	return &UploadToken{
		token:     token,
		accessKey: cred.AccessKey(),
		encoded:   token[strings.LastIndexByte(token, ':')+1:],
	}, nil
}

// Parse validates the shape of a token string and wraps it. The signature is
// not verified; only the service holds the secret to do that.
func Parse(token string) (*UploadToken, error) {
	parts := strings.SplitN(token, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, errors.ErrInvalidToken
	}
	return &UploadToken{
		token:     token,
		accessKey: parts[0],
		encoded:   parts[2],
	}, nil
}

// String returns the token in wire form, ready for an Authorization field.
func (t *UploadToken) String() string {
	return t.token
}

// AccessKey returns the access key that signed the token.
func (t *UploadToken) AccessKey() string {
	return t.accessKey
}

// Policy decodes the policy document carried by the token.
func (t *UploadToken) Policy() (UploadPolicy, error) {
	raw, err := base64.URLEncoding.DecodeString(t.encoded)
	if err != nil {
		return UploadPolicy{}, errors.ErrInvalidToken
	}
	var p UploadPolicy
	if err := json.Unmarshal(raw, &p); err != nil {
		return UploadPolicy{}, errors.ErrInvalidToken
	}
	return p, nil
}
