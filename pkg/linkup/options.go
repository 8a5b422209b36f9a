package linkup

import (
	"time"

	"github.com/cgmlink/librelinkup/pkg/cgm"
)

// Option denotes a functional option for a Client
type Option func(*Client)

// WithRegion sets the initial API region (default: RegionGlobal)
func WithRegion(region Region) Option {
	return func(c *Client) {
		c.region = region
	}
}

// WithVersion sets the client version advertised to the service
func WithVersion(version string) Option {
	return func(c *Client) {
		if version != "" {
			c.version = version
		}
	}
}

// WithConnectionName selects the patient connection by display name
// ("First Last", case-sensitive exact match)
func WithConnectionName(name string) Option {
	return func(c *Client) {
		c.connectionName = name
	}
}

// WithConnectionFunc selects the patient connection via a caller-supplied
// function. Takes precedence after WithConnectionName
func WithConnectionFunc(fn ConnectionFunc) Option {
	return func(c *Client) {
		c.connectionFn = fn
	}
}

// WithLogger sets a logger for client events
func WithLogger(logger cgm.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout sets the HTTP request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithEndpoint overrides the initial API host (primarily for testing)
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithRegionHosts overrides the region -> host table used for regional
// redirects (primarily for testing)
func WithRegionHosts(hosts map[Region]string) Option {
	return func(c *Client) {
		if hosts != nil {
			c.regionHosts = hosts
		}
	}
}
