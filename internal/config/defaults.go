package config

// Default values applied when a key is absent from file and environment.
const (
	DefaultBuiltinCore      = true
	DefaultMaxFileSize      = "1MiB"
	DefaultMaxFileSizeBytes = 1 << 20
	DefaultWorkers          = 0
	DefaultOutputFormat     = FormatText
	DefaultOutputColor      = ColorAuto
	DefaultDiagnosticsAddr  = ""
	DefaultLogLevel         = "info"
	DefaultLogJSON          = false
	DefaultOTLPEndpoint     = ""
	DefaultOTLPInsecure     = false
	DefaultSampleRatio      = 1.0
)

// DefaultPreludeUnits are the unit names whose convert module supplies the
// well-known conversion traits.
func DefaultPreludeUnits() []string {
	return []string{"core", "std"}
}

// DefaultExcludeDirs are directory names never descended into.
func DefaultExcludeDirs() []string {
	return []string{"target", ".git"}
}
