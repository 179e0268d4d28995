package miscutils

// Environment variable names
const (
	// EnvCodec selects the codec: "pickle" or "json".
	EnvCodec = "MISCUTILS_CODEC"

	// EnvMaxDepth bounds graph nesting for the codec and the repair walk.
	EnvMaxDepth = "MISCUTILS_MAX_DEPTH"

	// EnvLogLevel is one of debug, info, warn, error.
	EnvLogLevel = "MISCUTILS_LOG_LEVEL"

	// EnvLogFormat is one of json, text, console.
	EnvLogFormat = "MISCUTILS_LOG_FORMAT"

	// EnvCacheTTL is a time.ParseDuration string, e.g. "24h".
	EnvCacheTTL = "MISCUTILS_CACHE_TTL"

	// EnvPasswordFile is the file Secrets reads its password from.
	EnvPasswordFile = "MISCUTILS_PASSWORD_FILE"

	// EnvSalt is the key derivation salt for Secrets.
	EnvSalt = "MISCUTILS_SALT"
)

// Default values
const (
	DefaultCodec     = "pickle"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)
