package version

// Set at build time with
// -ldflags "-X product-service/internal/version.Version=... -X ...Commit=... -X ...BuildTime=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)
