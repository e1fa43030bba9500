package version

// VERSION is overridden at link time, e.g.:
//
//	go build -ldflags "-X github.com/ORIGYN-SA/mintgo/version.VERSION=v1.2.3"
var VERSION = "dev"

// AppVersion returns the identifier sent along with remote calls.
func AppVersion() string {
	return "mintgo/" + VERSION
}
