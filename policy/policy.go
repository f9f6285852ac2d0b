// Package policy builds upload policies and mints upload tokens.
//
// An UploadPolicy describes what a token holder may upload: the target
// bucket (and optionally key or key prefix), expiry, size and MIME
// constraints, and server-side callback behavior. Policies are serialized to
// JSON, signed with a credential, and carried as upload tokens on every
// upload request.
package policy

import (
	"strings"
	"time"
)

// UploadPolicy is the JSON policy document embedded in an upload token.
// Field names follow the service's wire format.
type UploadPolicy struct {
	Scope               string `json:"scope,omitempty"`
	Deadline            uint32 `json:"deadline,omitempty"`
	IsPrefixalScope     int    `json:"isPrefixalScope,omitempty"`
	InsertOnly          int    `json:"insertOnly,omitempty"`
	EndUser             string `json:"endUser,omitempty"`
	ReturnURL           string `json:"returnUrl,omitempty"`
	ReturnBody          string `json:"returnBody,omitempty"`
	CallbackURL         string `json:"callbackUrl,omitempty"`
	CallbackHost        string `json:"callbackHost,omitempty"`
	CallbackBody        string `json:"callbackBody,omitempty"`
	CallbackBodyType    string `json:"callbackBodyType,omitempty"`
	PersistentOps       string `json:"persistentOps,omitempty"`
	PersistentNotifyURL string `json:"persistentNotifyUrl,omitempty"`
	PersistentPipeline  string `json:"persistentPipeline,omitempty"`
	SaveKey             string `json:"saveKey,omitempty"`
	ForceSaveKey        bool   `json:"forceSaveKey,omitempty"`
	FsizeMin            int64  `json:"fsizeMin,omitempty"`
	FsizeLimit          int64  `json:"fsizeLimit,omitempty"`
	DetectMime          int    `json:"detectMime,omitempty"`
	MimeLimit           string `json:"mimeLimit,omitempty"`
	FileType            int    `json:"fileType,omitempty"`
	DeleteAfterDays     int    `json:"deleteAfterDays,omitempty"`
}

// Bucket returns the bucket component of the policy scope.
func (p UploadPolicy) Bucket() string {
	bucket, _, _ := strings.Cut(p.Scope, ":")
	return bucket
}

// Key returns the key (or key prefix) component of the policy scope, and
// whether one is present.
func (p UploadPolicy) Key() (string, bool) {
	_, key, ok := strings.Cut(p.Scope, ":")
	return key, ok
}

// PrefixalScope reports whether the scope key constrains a key prefix
// rather than a single object.
func (p UploadPolicy) PrefixalScope() bool {
	return p.IsPrefixalScope != 0
}

// AllowsOverwrite reports whether the token may overwrite existing objects.
func (p UploadPolicy) AllowsOverwrite() bool {
	return p.InsertOnly == 0
}

// MimeDetectionEnabled reports whether the server should sniff the uploaded
// content type instead of trusting the declared one.
func (p UploadPolicy) MimeDetectionEnabled() bool {
	return p.DetectMime != 0
}

// InfrequentStorage reports whether objects are stored in the infrequent
// access tier.
func (p UploadPolicy) InfrequentStorage() bool {
	return p.FileType != 0
}

// CallbackURLs returns the configured callback URLs.
func (p UploadPolicy) CallbackURLs() []string {
	return splitList(p.CallbackURL)
}

// MimeLimits returns the accepted MIME types, nil when unrestricted.
func (p UploadPolicy) MimeLimits() []string {
	return splitList(p.MimeLimit)
}

// ExpiresAt returns the token expiry time, zero when no deadline is set.
func (p UploadPolicy) ExpiresAt() time.Time {
	if p.Deadline == 0 {
		return time.Time{}
	}
	return time.Unix(int64(p.Deadline), 0)
}

// Expired reports whether the policy deadline has passed.
func (p UploadPolicy) Expired() bool {
	deadline := p.ExpiresAt()
	return !deadline.IsZero() && time.Now().After(deadline)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ";")
}
