package dnsprovider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

const recordType = "A"

// CloudflareProvider is the production Provider, backed by the CloudFlare
// API. Every call is scoped to a zone resolved from an internal zone
// cache populated at Init and refreshed on HealthCheck.
type CloudflareProvider struct {
	API    *cloudflare.API
	Logger *zap.SugaredLogger

	Retries    uint
	RetryDelay time.Duration

	zones *zoneCache
}

var _ Provider = (*CloudflareProvider)(nil)

// NewCloudflareProvider builds a provider authenticated with an API
// token (not the legacy email+global-key pair, which the reference
// implementation also dropped in favor of scoped tokens).
func NewCloudflareProvider(apiToken string, logger *zap.SugaredLogger) (*CloudflareProvider, error) {
	api, err := cloudflare.NewWithAPIToken(apiToken)
	if err != nil {
		return nil, fmt.Errorf("dnsprovider: constructing cloudflare client: %w", err)
	}
	return &CloudflareProvider{API: api, Logger: logger, zones: newZoneCache()}, nil
}

func (p *CloudflareProvider) logger() *zap.SugaredLogger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop().Sugar()
}

func (p *CloudflareProvider) retries() uint {
	if p.Retries == 0 {
		return 3
	}
	return p.Retries
}

func (p *CloudflareProvider) retryDelay() time.Duration {
	if p.RetryDelay == 0 {
		return 2 * time.Second
	}
	return p.RetryDelay
}

// Init populates the zone cache and fails if the token can see no zones.
func (p *CloudflareProvider) Init(ctx context.Context) error {
	if err := p.refreshZones(ctx); err != nil {
		return fmt.Errorf("dnsprovider: initial zone load: %w", err)
	}
	if p.zones.Count() == 0 {
		return fmt.Errorf("dnsprovider: token has access to zero zones")
	}
	p.logger().Infow("zone cache populated", "zones", p.zones.Count())
	return nil
}

func (p *CloudflareProvider) refreshZones(ctx context.Context) error {
	var zones []cloudflare.Zone
	err := p.retryableCall(ctx, "list_zones", func() error {
		var err error
		zones, err = p.API.ListZones(ctx)
		return err
	})
	if err != nil {
		return err
	}
	byName := make(map[string]string, len(zones))
	for _, z := range zones {
		byName[z.Name] = z.ID
	}
	p.zones.Refresh(byName)
	return nil
}

// ResolveZone resolves hostname against the cached zone list.
func (p *CloudflareProvider) ResolveZone(_ context.Context, hostname string) (string, error) {
	zoneID, ok := p.zones.Resolve(hostname)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrZoneNotFound, hostname)
	}
	return zoneID, nil
}

// ListRecords lists the A records for hostname within its resolved zone.
func (p *CloudflareProvider) ListRecords(ctx context.Context, hostname string) ([]Record, error) {
	zoneID, err := p.ResolveZone(ctx, hostname)
	if err != nil {
		return nil, err
	}

	var raw []cloudflare.DNSRecord
	err = p.retryableCall(ctx, "list_dns_records", func() error {
		var err error
		raw, _, err = p.API.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.ListDNSRecordsParams{
			Type: recordType,
			Name: hostname,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("dnsprovider: listing records for %s: %w", hostname, err)
	}

	out := make([]Record, 0, len(raw))
	for _, r := range raw {
		out = append(out, toRecord(r, zoneID))
	}
	return out, nil
}

// CreateRecord creates a new A record for hostname.
func (p *CloudflareProvider) CreateRecord(ctx context.Context, hostname, ip string, ttl int, proxied bool) (Record, error) {
	zoneID, err := p.ResolveZone(ctx, hostname)
	if err != nil {
		return Record{}, err
	}

	var created cloudflare.DNSRecord
	err = p.retryableCall(ctx, "create_dns_record", func() error {
		var err error
		created, err = p.API.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.CreateDNSRecordParams{
			Type:    recordType,
			Name:    hostname,
			Content: ip,
			TTL:     ttl,
			Proxied: &proxied,
		})
		return err
	})
	if err != nil {
		return Record{}, fmt.Errorf("dnsprovider: creating record %s -> %s: %w", hostname, ip, err)
	}

	p.logger().Infow("created dns record", "hostname", hostname, "ip", ip, "zone", zoneID)
	return toRecord(created, zoneID), nil
}

// DeleteRecord deletes a single record by id.
func (p *CloudflareProvider) DeleteRecord(ctx context.Context, recordID, zoneID string) error {
	err := p.retryableCall(ctx, "delete_dns_record", func() error {
		return p.API.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), recordID)
	})
	if err != nil {
		return fmt.Errorf("dnsprovider: deleting record %s: %w", recordID, err)
	}
	p.logger().Infow("deleted dns record", "record_id", recordID, "zone", zoneID)
	return nil
}

// DeleteRecordsByIP removes every record for hostname whose content
// equals ip. A failure deleting one record is logged and skipped so a
// single bad record cannot block the rest of the batch.
func (p *CloudflareProvider) DeleteRecordsByIP(ctx context.Context, hostname, ip string) ([]string, error) {
	records, err := p.ListRecords(ctx, hostname)
	if err != nil {
		return nil, err
	}

	var deleted []string
	var errs error
	for _, r := range records {
		if r.IP != ip {
			continue
		}
		if err := p.DeleteRecord(ctx, r.ID, r.ZoneID); err != nil {
			p.logger().Warnw("failed to delete dns record", "hostname", hostname, "ip", ip, "record_id", r.ID, "error", err)
			errs = joinErr(errs, err)
			continue
		}
		deleted = append(deleted, r.ID)
	}
	return deleted, errs
}

// SyncHostname deletes every record for hostname not present in
// validIPs, leaving the rest untouched. Deletions happen before any
// caller-side creation, matching the reconciler's delete-before-create
// ordering for the hostname as a whole.
func (p *CloudflareProvider) SyncHostname(ctx context.Context, hostname string, validIPs map[string]struct{}) (SyncResult, error) {
	records, err := p.ListRecords(ctx, hostname)
	if err != nil {
		return SyncResult{}, err
	}

	result := SyncResult{}
	for _, r := range records {
		if _, ok := validIPs[r.IP]; ok {
			result.Kept++
			continue
		}
		if err := p.DeleteRecord(ctx, r.ID, r.ZoneID); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Deleted++
	}
	return result, nil
}

// HealthCheck refreshes the zone cache and reports whether the token is
// still usable.
func (p *CloudflareProvider) HealthCheck(ctx context.Context) HealthStatus {
	if err := p.refreshZones(ctx); err != nil {
		return HealthStatus{Healthy: false, Error: err}
	}
	return HealthStatus{Healthy: true, ZoneCount: p.zones.Count()}
}

// retryableCall wraps a CloudFlare API call with the shared retry
// policy, skipping retries for errors classified as permanent (4xx:
// the request itself is wrong and retrying will not help).
func (p *CloudflareProvider) retryableCall(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		func() error {
			err := fn()
			if err != nil && isPermanent(err) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Attempts(p.retries()),
		retry.Delay(p.retryDelay()),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			p.logger().Warnw("retrying cloudflare call", "op", op, "attempt", n+1, "error", err)
		}),
	)
}

// isPermanent reports whether err carries an HTTP status in the 4xx
// range, which retry-go treats as non-retryable.
func isPermanent(err error) bool {
	var apiErr *cloudflare.Error
	if ok := cloudflareAsError(err, &apiErr); ok {
		return apiErr.StatusCode >= http.StatusBadRequest && apiErr.StatusCode < http.StatusInternalServerError
	}
	return false
}

func toRecord(r cloudflare.DNSRecord, zoneID string) Record {
	proxied := false
	if r.Proxied != nil {
		proxied = *r.Proxied
	}
	return Record{
		ID:         r.ID,
		ZoneID:     zoneID,
		ZoneName:   r.ZoneName,
		Hostname:   r.Name,
		IP:         r.Content,
		TTL:        r.TTL,
		Proxied:    proxied,
		CreatedAt:  r.CreatedOn,
		ModifiedAt: r.ModifiedOn,
	}
}
