package compute

import (
	"github.com/imamik/dblab/internal/provisioning/image"
)

const phase = "compute"

// Provisioner creates the instances of one role per call. A single
// Provisioner is shared by all role units so the image is resolved once.
type Provisioner struct {
	resolver *image.Resolver
}

// NewProvisioner creates a compute provisioner using resolver for boot images.
func NewProvisioner(resolver *image.Resolver) *Provisioner {
	return &Provisioner{resolver: resolver}
}
