package handlers

import (
	"context"
	"fmt"
)

// Status prints the inventory recorded in the checkpoint without calling AWS.
func Status(_ context.Context, opts *Options) error {
	cs, err := loadInitialized(opts.store())
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, renderStatus(cs))
	return nil
}
