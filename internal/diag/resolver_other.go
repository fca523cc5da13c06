//go:build !linux && (darwin || freebsd || netbsd)

package diag

// DefaultResolver uses dladdr.
func DefaultResolver() Resolver {
	return Dladdr{}
}
