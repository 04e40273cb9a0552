// Package version resolves this module's own version from the running
// binary's build info, and renders the User-Agent string every Connection
// sends by default.
package version

import (
	"fmt"
	"runtime/debug"
)

const modulePath = "github.com/nrp-cz/nrp-go-client"

// ClientVersion returns this module's own version as recorded in the
// running binary's build info, or "dev" outside a versioned build.
func ClientVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}

	if info.Path == modulePath {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
		return "dev"
	}

	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			if dep.Replace != nil {
				return dep.Replace.Version + " (replaced)"
			}
			return dep.Version
		}
	}

	return "dev"
}

// UserAgent renders the default User-Agent string a Connection sends,
// identifying this client and its resolved version.
func UserAgent() string {
	return fmt.Sprintf("nrp-go-client/%s", ClientVersion())
}
