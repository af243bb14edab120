package config

// Viper keys for keron's process configuration. These never drive manifest
// evaluation — only CLI/process defaults (env(...) and secret(...) read the
// host environment and provider binaries directly, not viper).
const (
	KeyCloneTimeout       = "clone_timeout"
	KeyDefaultFormat      = "default_format"
	KeyDefaultColor       = "default_color"
	KeyPassCLIPath        = "pass_cli_path"
	KeyPackageManagerPath = "package_manager_path" // map, e.g. package_manager_path.brew
)
