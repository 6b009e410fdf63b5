package domain

// Token status constants
const (
	TokenStatusValid    = "valid"
	TokenStatusExpiring = "expiring"
	TokenStatusMissing  = "missing"
)

// Acquisition mode constants
const (
	AcquireModeSilent      = "silent"
	AcquireModeInteractive = "interactive"
)

// Issuer region constants
const (
	RegionUS = "us"
	RegionEU = "eu"
	RegionAP = "ap"
	RegionCA = "ca"
)

// Durable store driver constants
const (
	StorageDriverRedis  = "redis"
	StorageDriverSQLite = "sqlite"
)

// Issuance request body encoding constants
const (
	IssuanceBodyJSON = "json"
	IssuanceBodyForm = "form"
)

// regionIssuerBaseURLs maps a region to the issuance API origin.
// An explicit issuer.base_url in config takes precedence.
var regionIssuerBaseURLs = map[string]string{
	RegionUS: "https://auth.pingone.com",
	RegionEU: "https://auth.pingone.eu",
	RegionAP: "https://auth.pingone.asia",
	RegionCA: "https://auth.pingone.ca",
}

// IssuerBaseURL returns the issuance origin for a region, and whether the
// region is known.
func IssuerBaseURL(region string) (string, bool) {
	u, ok := regionIssuerBaseURLs[region]
	return u, ok
}

// KnownRegion reports whether region is one of the supported issuer regions.
func KnownRegion(region string) bool {
	_, ok := regionIssuerBaseURLs[region]
	return ok
}
