// Privilege check for binding low ports: a listening endpoint requires
// elevated privileges on low ports, and the server refuses to start
// otherwise.
package engine

import (
	"errors"
	"os"
	"runtime"
)

var errNeedsPrivilege = errors.New("binding a port below 1024 requires elevated privileges")

// hasElevatedPrivileges reports whether the current process can bind
// privileged ports. On POSIX this means running as root (euid 0); Windows
// does not gate low ports the same way, so it always reports true there.
func hasElevatedPrivileges() bool {
	if runtime.GOOS == "windows" {
		return true
	}
	return os.Geteuid() == 0
}
