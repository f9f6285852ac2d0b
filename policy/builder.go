package policy

import (
	"math"
	"strings"
	"time"

	"github.com/nimbusfs/uplink/errors"
)

// Builder constructs an UploadPolicy step by step. A Builder is single use:
// Build hands over the accumulated policy and marks the builder consumed,
// after which every Build call fails with ErrBuilderConsumed.
//
// Builders are not safe for concurrent use.
type Builder struct {
	policy   UploadPolicy
	lifetime time.Duration
	consumed bool
}

// ForBucket starts a policy scoped to a whole bucket. Tokens built from it
// may create objects under any key, and tokenLifetime bounds how long the
// token stays valid.
func ForBucket(bucket string, tokenLifetime time.Duration) *Builder {
	return &Builder{
		policy:   UploadPolicy{Scope: bucket},
		lifetime: tokenLifetime,
	}
}

// ForObject starts a policy scoped to a single object key.
func ForObject(bucket, key string, tokenLifetime time.Duration) *Builder {
	return &Builder{
		policy:   UploadPolicy{Scope: bucket + ":" + key},
		lifetime: tokenLifetime,
	}
}

// ForObjectsWithPrefix starts a policy scoped to every key under prefix.
func ForObjectsWithPrefix(bucket, prefix string, tokenLifetime time.Duration) *Builder {
	return &Builder{
		policy:   UploadPolicy{Scope: bucket + ":" + prefix, IsPrefixalScope: 1},
		lifetime: tokenLifetime,
	}
}

// InsertOnly forbids overwriting existing objects.
func (b *Builder) InsertOnly() *Builder {
	b.policy.InsertOnly = 1
	return b
}

// Overwritable allows overwriting existing objects.
func (b *Builder) Overwritable() *Builder {
	b.policy.InsertOnly = 0
	return b
}

// EnableMimeDetection asks the server to sniff the uploaded content type.
func (b *Builder) EnableMimeDetection() *Builder {
	b.policy.DetectMime = 1
	return b
}

// DisableMimeDetection trusts the declared content type.
func (b *Builder) DisableMimeDetection() *Builder {
	b.policy.DetectMime = 0
	return b
}

// InfrequentStorage stores uploaded objects in the infrequent access tier.
func (b *Builder) InfrequentStorage() *Builder {
	b.policy.FileType = 1
	return b
}

// NormalStorage stores uploaded objects in the standard tier.
func (b *Builder) NormalStorage() *Builder {
	b.policy.FileType = 0
	return b
}

// ReturnURL redirects the uploading browser to url after a successful upload.
func (b *Builder) ReturnURL(url string) *Builder {
	b.policy.ReturnURL = url
	return b
}

// ReturnBody sets the response body template returned to the uploader.
func (b *Builder) ReturnBody(body string) *Builder {
	b.policy.ReturnBody = body
	return b
}

// CallbackURLs registers server-side callback URLs, tried in order, with an
// optional Host header override.
func (b *Builder) CallbackURLs(urls []string, host string) *Builder {
	b.policy.CallbackURL = strings.Join(urls, ";")
	b.policy.CallbackHost = host
	return b
}

// CallbackBody sets the callback request body template and its content type.
func (b *Builder) CallbackBody(body, bodyType string) *Builder {
	b.policy.CallbackBody = body
	b.policy.CallbackBodyType = bodyType
	return b
}

// PersistentOps queues post-upload processing operations, notifying
// notifyURL when they complete, on the given pipeline.
func (b *Builder) PersistentOps(ops []string, notifyURL, pipeline string) *Builder {
	b.policy.PersistentOps = strings.Join(ops, ";")
	b.policy.PersistentNotifyURL = notifyURL
	b.policy.PersistentPipeline = pipeline
	return b
}

// SaveAs stores uploads under key regardless of the uploaded key. With force
// set, the key applies even when the uploader names one explicitly.
func (b *Builder) SaveAs(key string, force bool) *Builder {
	b.policy.SaveKey = key
	b.policy.ForceSaveKey = force
	return b
}

// FileSizeRange restricts accepted upload sizes to [min, max] bytes.
// A zero max leaves the upper bound open.
func (b *Builder) FileSizeRange(min, max int64) *Builder {
	b.policy.FsizeMin = min
	b.policy.FsizeLimit = max
	return b
}

// MimeTypes restricts accepted uploads to the given MIME types.
func (b *Builder) MimeTypes(types ...string) *Builder {
	b.policy.MimeLimit = strings.Join(types, ";")
	return b
}

// ObjectLifetime schedules uploaded objects for deletion after lifetime,
// rounded up to whole days.
func (b *Builder) ObjectLifetime(lifetime time.Duration) *Builder {
	days := int(math.Ceil(lifetime.Hours() / 24))
	b.policy.DeleteAfterDays = days
	return b
}

// EndUser tags uploads with an end-user identifier.
func (b *Builder) EndUser(id string) *Builder {
	b.policy.EndUser = id
	return b
}

// Consumed reports whether Build has already been called.
func (b *Builder) Consumed() bool {
	return b.consumed
}

// Build stamps the token deadline and hands over the policy. The builder is
// consumed; further Build calls return ErrBuilderConsumed.
func (b *Builder) Build() (UploadPolicy, error) {
	if b.consumed {
		return UploadPolicy{}, errors.ErrBuilderConsumed
	}
	b.consumed = true

	p := b.policy
	p.Deadline = uint32(time.Now().Add(b.lifetime).Unix())
	return p, nil
}
