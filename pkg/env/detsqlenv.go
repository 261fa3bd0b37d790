package env

import (
	"time"

	"github.com/detsql/detsql/pkg/version"
)

const (
	AppVersionEnvVar = "APP_VERSION"

	APIPortEnvVar           = "API_PORT"
	InitialIDEnvVar         = "INITIAL_ID"
	AllocationTimeoutEnvVar = "ALLOCATION_TIMEOUT"
	IdempotencyTTLEnvVar    = "IDEMPOTENCY_TTL"

	ArchiveEnabledEnvVar  = "ARCHIVE_ENABLED"
	ArchivePathEnvVar     = "ARCHIVE_PATH"
	ArchiveIntervalEnvVar = "ARCHIVE_INTERVAL"

	ErrorReportingEnabledEnvVar = "ERROR_REPORTING_ENABLED"
	SentryDSNEnvVar             = "SENTRY_DSN"
)

// GetAppVersion returns the version reported in logs and error reports. It defaults to the
// version the binary was built with.
func GetAppVersion() string {
	return Get(AppVersionEnvVar, version.FriendlyVersion())
}

// GetAPIPort returns the port the HTTP API listens on.
func GetAPIPort() int {
	return GetInt(APIPortEnvVar, 9005)
}

// GetInitialID returns the first identifier the service allocates.
func GetInitialID() int64 {
	return GetInt64(InitialIDEnvVar, 1)
}

// GetAllocationTimeout returns how long a request may wait for the allocation guard before the
// request fails.
func GetAllocationTimeout() time.Duration {
	return GetDuration(AllocationTimeoutEnvVar, 5*time.Second)
}

// GetIdempotencyTTL returns how long a request id is remembered for replayed submissions.
func GetIdempotencyTTL() time.Duration {
	return GetDuration(IdempotencyTTLEnvVar, 10*time.Minute)
}

// IsArchiveEnabled returns true if entries should be archived to a local bolt database.
func IsArchiveEnabled() bool {
	return GetBool(ArchiveEnabledEnvVar, false)
}

// GetArchivePath returns the bolt database file used by the archive.
func GetArchivePath() string {
	return Get(ArchivePathEnvVar, "/var/lib/detsql/poclog.db")
}

// GetArchiveInterval returns the interval between periodic archive flushes.
func GetArchiveInterval() time.Duration {
	return GetDuration(ArchiveIntervalEnvVar, time.Minute)
}

func IsErrorReportingEnabled() bool {
	return GetBool(ErrorReportingEnabledEnvVar, false)
}

func GetSentryDSN() string {
	return Get(SentryDSNEnvVar, "")
}
