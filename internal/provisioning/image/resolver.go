package image

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/platform/aws"
)

var (
	// ErrArchitectureMismatch means the explicit image does not match the required architecture.
	ErrArchitectureMismatch = errors.New("image architecture mismatch")
	// ErrNoImageFound means no image matched the name pattern and architecture.
	ErrNoImageFound = errors.New("no image found")
)

// archPlaceholder is replaced in name patterns with the requested architecture.
const archPlaceholder = "{arch}"

// NormalizeArch maps architecture spellings to the EC2 names ("x86_64", "arm64").
func NormalizeArch(arch string) string {
	switch strings.ToLower(strings.TrimSpace(arch)) {
	case "amd64", "x86_64", "x86-64":
		return "x86_64"
	case "arm64", "aarch64":
		return "arm64"
	default:
		return strings.ToLower(arch)
	}
}

// Resolver finds the boot image. It caches results so concurrent units
// sharing one Resolver query the provider once.
type Resolver struct {
	images aws.ImageManager
	owners []string

	mu    sync.Mutex
	cache map[string]*aws.Image
}

// NewResolver creates a resolver listing images owned by owners.
func NewResolver(images aws.ImageManager, owners []string) *Resolver {
	return &Resolver{images: images, owners: owners, cache: map[string]*aws.Image{}}
}

// Resolve returns the image to boot. With overrideID set it must carry
// exactly requiredArch; otherwise the newest image matching namePattern,
// with {arch} substituted, is returned.
func (r *Resolver) Resolve(ctx context.Context, overrideID string, requiredArch config.Arch, namePattern string) (*aws.Image, error) {
	key := strings.Join([]string{overrideID, string(requiredArch), namePattern}, "|")

	r.mu.Lock()
	defer r.mu.Unlock()
	if img, ok := r.cache[key]; ok {
		return img, nil
	}

	var img *aws.Image
	var err error
	if overrideID != "" {
		img, err = r.byID(ctx, overrideID, requiredArch)
	} else {
		img, err = r.newest(ctx, requiredArch, namePattern)
	}
	if err != nil {
		return nil, err
	}
	r.cache[key] = img
	return img, nil
}

func (r *Resolver) byID(ctx context.Context, id string, requiredArch config.Arch) (*aws.Image, error) {
	img, err := r.images.GetImage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to describe image %s: %w", id, err)
	}
	if img == nil {
		return nil, fmt.Errorf("%w: image %s does not exist", ErrNoImageFound, id)
	}
	if NormalizeArch(img.Architecture) != NormalizeArch(string(requiredArch)) {
		return nil, fmt.Errorf("%w: image %s is %s, topology requires %s",
			ErrArchitectureMismatch, id, img.Architecture, requiredArch)
	}
	return img, nil
}

func (r *Resolver) newest(ctx context.Context, requiredArch config.Arch, namePattern string) (*aws.Image, error) {
	pattern := strings.ReplaceAll(namePattern, archPlaceholder, string(requiredArch))
	images, err := r.images.ListImages(ctx, pattern, r.owners)
	if err != nil {
		return nil, fmt.Errorf("failed to list images matching %s: %w", pattern, err)
	}

	want := NormalizeArch(string(requiredArch))
	candidates := lo.Filter(images, func(img aws.Image, _ int) bool {
		return NormalizeArch(img.Architecture) == want
	})
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: pattern %s, architecture %s", ErrNoImageFound, pattern, requiredArch)
	}

	newest := lo.MaxBy(candidates, func(a, b aws.Image) bool {
		return a.CreationDate.After(b.CreationDate)
	})
	return &newest, nil
}
