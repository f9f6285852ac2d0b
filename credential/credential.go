// Package credential holds access credentials and request signing.
//
// A Credential pairs an access key with its secret key and produces the
// HMAC-SHA1 signatures the upload service expects. Providers abstract where
// credentials come from so callers can swap static keys, environment
// variables, or a process-wide default without changing upload code.
package credential

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"os"
	"sync"
)

// Environment variable names read by the Env provider.
const (
	EnvAccessKey = "UPLINK_ACCESS_KEY"
	EnvSecretKey = "UPLINK_SECRET_KEY"
)

// ErrNoCredential indicates that a provider has no credential to offer.
var ErrNoCredential = errors.New("credential: no credential available")

// Credential is an access key / secret key pair.
type Credential struct {
	accessKey string
	secretKey []byte
}

// New creates a Credential from an access key and secret key.
func New(accessKey, secretKey string) Credential {
	return Credential{
		accessKey: accessKey,
		secretKey: []byte(secretKey),
	}
}

// AccessKey returns the access key.
func (c Credential) AccessKey() string {
	return c.accessKey
}

// Sign computes the URL-safe base64 HMAC-SHA1 signature of data.
func (c Credential) Sign(data []byte) string {
	h := hmac.New(sha1.New, c.secretKey)
	h.Write(data)
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}

// SignWithData signs data and returns the full authorization form
// "accessKey:signature:base64(data)" used by upload tokens.
func (c Credential) SignWithData(data []byte) string {
	encoded := base64.URLEncoding.EncodeToString(data)
	return c.accessKey + ":" + c.Sign([]byte(encoded)) + ":" + encoded
}

// Verify reports whether signature is a valid Sign output for data. The
// comparison is constant time.
func (c Credential) Verify(data []byte, signature string) bool {
	return hmac.Equal([]byte(c.Sign(data)), []byte(signature))
}

// Provider supplies a Credential on demand.
type Provider interface {
	// Get returns a credential or ErrNoCredential when none is configured.
	Get() (Credential, error)
}

// StaticProvider always returns the same credential.
type StaticProvider struct {
	cred Credential
}

// NewStaticProvider creates a provider wrapping a fixed credential.
func NewStaticProvider(cred Credential) *StaticProvider {
	return &StaticProvider{cred: cred}
}

// Get implements Provider.
func (p *StaticProvider) Get() (Credential, error) {
	return p.cred, nil
}

// EnvProvider reads the credential from UPLINK_ACCESS_KEY and
// UPLINK_SECRET_KEY each time it is asked.
type EnvProvider struct{}

// Get implements Provider.
func (p *EnvProvider) Get() (Credential, error) {
	ak := os.Getenv(EnvAccessKey)
	sk := os.Getenv(EnvSecretKey)
	if ak == "" || sk == "" {
		return Credential{}, ErrNoCredential
	}
	return New(ak, sk), nil
}

// ChainProvider returns the credential from the first provider in the chain
// that has one.
type ChainProvider struct {
	providers []Provider
}

// NewChainProvider creates a provider that consults providers in order.
func NewChainProvider(providers ...Provider) *ChainProvider {
	return &ChainProvider{providers: providers}
}

// Get implements Provider.
func (p *ChainProvider) Get() (Credential, error) {
	for _, provider := range p.providers {
		cred, err := provider.Get()
		if err == nil {
			return cred, nil
		}
		if !errors.Is(err, ErrNoCredential) {
			return Credential{}, err
		}
	}
	return Credential{}, ErrNoCredential
}

// global is the process-wide default credential, settable once at startup
// and used by clients constructed without an explicit provider.
var global struct {
	mu   sync.RWMutex
	cred Credential
	set  bool
}

// SetGlobal installs the process-wide default credential.
func SetGlobal(cred Credential) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.cred = cred
	global.set = true
}

// ResetGlobal clears the process-wide default credential.
func ResetGlobal() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.cred = Credential{}
	global.set = false
}

// GlobalProvider serves the credential installed with SetGlobal.
type GlobalProvider struct{}

// Get implements Provider.
func (p *GlobalProvider) Get() (Credential, error) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	if !global.set {
		return Credential{}, ErrNoCredential
	}
	return global.cred, nil
}

// Default returns the standard provider chain: static configuration first,
// then environment variables, then the process-wide default.
func Default(static ...Provider) Provider {
	chain := make([]Provider, 0, len(static)+2)
	chain = append(chain, static...)
	chain = append(chain, &EnvProvider{}, &GlobalProvider{})
	return NewChainProvider(chain...)
}
