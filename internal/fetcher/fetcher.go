package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ipfs/go-cid"
)

const (
	SchemeIPFS = "ipfs"
	SchemeS3   = "s3"
)

var (
	ErrInvalidRef        = errors.New("invalid source reference")
	ErrUnsupportedScheme = errors.New("unsupported source scheme")
	ErrNotFound          = errors.New("object not found")
)

// Object is a fetched object. ContentLength is -1 when the source did not
// report one.
type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// Ref is a parsed source reference such as ipfs://<CID> or s3://bucket/key.
type Ref struct {
	Scheme string
	Host   string
	Path   string
}

func (r Ref) String() string {
	if r.Path == "" {
		return r.Scheme + "://" + r.Host
	}
	return r.Scheme + "://" + r.Host + "/" + r.Path
}

// Source fetches objects for one scheme.
type Source interface {
	Fetch(ctx context.Context, ref Ref) (*Object, error)
}

// Fetcher dispatches references to the source registered for their scheme.
type Fetcher struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func New() *Fetcher {
	return &Fetcher{
		sources: make(map[string]Source),
	}
}

func (f *Fetcher) Register(scheme string, src Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[strings.ToLower(scheme)] = src
}

// Validate reports whether ref is well formed and has a registered source.
func (f *Fetcher) Validate(ref string) error {
	r, err := Parse(ref)
	if err != nil {
		return err
	}
	if _, ok := f.source(r.Scheme); !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedScheme, r.Scheme)
	}
	return nil
}

func (f *Fetcher) Fetch(ctx context.Context, ref string) (*Object, error) {
	r, err := Parse(ref)
	if err != nil {
		return nil, err
	}
	src, ok := f.source(r.Scheme)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, r.Scheme)
	}

	obj, err := src.Fetch(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s.Fetch: %w", r.Scheme, err)
	}
	return obj, nil
}

func (f *Fetcher) source(scheme string) (Source, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	src, ok := f.sources[scheme]
	return src, ok
}

// Parse splits ref into its scheme and location and checks the location is
// valid for known schemes.
func Parse(ref string) (Ref, error) {
	scheme, rest, ok := strings.Cut(ref, "://")
	if !ok || scheme == "" || rest == "" {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	r := Ref{Scheme: strings.ToLower(scheme)}
	r.Host, r.Path, _ = strings.Cut(rest, "/")

	switch r.Scheme {
	case SchemeIPFS:
		// CIDs are case sensitive in base58 and must not be altered.
		if r.Path != "" {
			return Ref{}, fmt.Errorf("%w: ipfs reference must be ipfs://<CID>", ErrInvalidRef)
		}
		if _, err := cid.Decode(r.Host); err != nil {
			return Ref{}, fmt.Errorf("%w: invalid CID %q: %v", ErrInvalidRef, r.Host, err)
		}
	case SchemeS3:
		if r.Host == "" || r.Path == "" {
			return Ref{}, fmt.Errorf("%w: s3 reference must be s3://bucket/key", ErrInvalidRef)
		}
	}

	return r, nil
}
