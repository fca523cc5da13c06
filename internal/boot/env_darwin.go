//go:build darwin

package boot

// Without a flat namespace libjava links against the JVM_* functions of the
// system libjvm instead of the runtime's own.
var defaultRequiredEnvironment = []string{"DYLD_FORCE_FLAT_NAMESPACE"}
