// Package options defines reusable configuration groups. Each group knows
// its defaults, binds itself to command-line flags and validates itself;
// applications compose the groups they need.
package options

import (
	"fmt"
	"net"

	"github.com/spf13/pflag"
)

// IOptions is the contract every option group satisfies.
type IOptions interface {
	// Validate checks the option values, returning one error per problem.
	Validate() []error

	// AddFlags binds the group to the given flag set.
	AddFlags(fs *pflag.FlagSet)
}

// ValidateAddress checks a host:port bind address.
func ValidateAddress(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid bind address %q: %w", addr, err)
	}
	return nil
}
