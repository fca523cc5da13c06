//go:build !darwin

package boot

var defaultRequiredEnvironment []string
