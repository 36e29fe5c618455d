package blob

import (
	"context"
	"fmt"

	"github.com/meridian-grc/meridian/pkg/configuration"
)

// Open selects a driver from configuration.
func Open(ctx context.Context, opts configuration.BlobOptions) (Store, error) {
	switch Driver(opts.Driver) {
	case DriverMemory:
		return NewMemory(), nil
	case DriverFS:
		return NewFS(opts.FSRoot)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    opts.S3Bucket,
			Region:    opts.S3Region,
			Endpoint:  opts.S3Endpoint,
			PathStyle: opts.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", opts.Driver)
	}
}
