package runner

import (
	"fmt"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/cache/directmapped"
	"github.com/sarchlab/cachesim/mem/cache/fullyassociative"
	"github.com/sarchlab/cachesim/mem/cache/setassociative"
)

// Build creates a simulator of the organization named in config. The returned
// simulator is nil whenever an error is returned.
func Build(name string, config cache.Config) (cache.Simulator, error) {
	switch config.Organization {
	case cache.DirectMapped:
		c, err := directmapped.MakeBuilder().WithConfig(config).Build(name)
		if err != nil {
			return nil, err
		}

		return c, nil
	case cache.FullyAssociative:
		c, err := fullyassociative.MakeBuilder().WithConfig(config).Build(name)
		if err != nil {
			return nil, err
		}

		return c, nil
	case cache.SetAssociative:
		c, err := setassociative.MakeBuilder().WithConfig(config).Build(name)
		if err != nil {
			return nil, err
		}

		return c, nil
	default:
		return nil, fmt.Errorf("building %s: %w: unknown organization %q",
			name, cache.ErrConfiguration, config.Organization)
	}
}
