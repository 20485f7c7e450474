// Package dnsprovider manages A records in an upstream DNS provider,
// keyed by hostname and scoped to a zone. CloudFlare is the reference
// transport; callers depend only on the Provider interface.
package dnsprovider

import (
	"context"
	"errors"
	"time"
)

// ErrZoneNotFound is returned by ResolveZone when no configured zone is a
// suffix of the requested hostname.
var ErrZoneNotFound = errors.New("dnsprovider: no zone matches hostname")

// Record is a provider-side A record. Records are owned by the provider:
// the controller creates and deletes them but never mutates one in
// place — a TTL or proxy change is a delete followed by a create.
type Record struct {
	ID         string
	ZoneID     string
	ZoneName   string
	Hostname   string
	IP         string
	TTL        int
	Proxied    bool
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// SyncResult summarizes a single SyncHostname call.
type SyncResult struct {
	Kept    int
	Deleted int
	Errors  []error
}

// HealthStatus reports provider connectivity, refreshing the zone cache
// as a side effect.
type HealthStatus struct {
	Healthy   bool
	ZoneCount int
	Error     error
}

// Provider lists, creates, and deletes A records in an upstream DNS
// service. All operations are scoped internally to the zone that owns
// the hostname in question; in CloudflareProvider the single-record
// primitives (ListRecords, CreateRecord, DeleteRecord) are retried on
// transient failure with a fixed wait (three attempts, 2 seconds apart,
// unless Retries/RetryDelay say otherwise). Composite operations
// (DeleteRecordsByIP, SyncHostname) are not retried as a whole — only
// their primitive calls are.
type Provider interface {
	// Init authenticates and populates the zone cache. It fails fatally
	// (returns a non-nil error) if no zones are visible to the token.
	Init(ctx context.Context) error

	// ResolveZone returns the id of the zone that owns hostname, trying
	// progressively shorter domain suffixes and caching the result.
	// Returns ErrZoneNotFound if no configured zone matches.
	ResolveZone(ctx context.Context, hostname string) (zoneID string, err error)

	// ListRecords lists A records for the exact hostname.
	ListRecords(ctx context.Context, hostname string) ([]Record, error)

	// CreateRecord creates a new A record. It does not pre-check for a
	// duplicate; callers must list first when idempotence matters.
	CreateRecord(ctx context.Context, hostname, ip string, ttl int, proxied bool) (Record, error)

	// DeleteRecord deletes a single record by id within zoneID.
	DeleteRecord(ctx context.Context, recordID, zoneID string) error

	// DeleteRecordsByIP lists hostname's records then deletes every one
	// whose content equals ip. Partial failures are logged and counted
	// but do not abort the batch; the returned slice holds the ids that
	// were actually deleted.
	DeleteRecordsByIP(ctx context.Context, hostname, ip string) (deletedIDs []string, err error)

	// SyncHostname deletes every record for hostname whose content is
	// not in validIPs, keeping the rest.
	SyncHostname(ctx context.Context, hostname string, validIPs map[string]struct{}) (SyncResult, error)

	// HealthCheck reports connectivity and refreshes the zone cache.
	HealthCheck(ctx context.Context) HealthStatus
}
