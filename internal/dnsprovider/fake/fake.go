// Package fake provides an in-memory dnsprovider.Provider for
// reconciler tests, with a hook to make named calls fail on demand.
package fake

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/magicorntech/epictetus/internal/dnsprovider"
)

// Provider is a mutable, thread-safe stand-in for a live DNS backend.
type Provider struct {
	Zones map[string]string // zone name -> zone id

	mu      sync.Mutex
	records map[string]dnsprovider.Record // record id -> record
	nextID  int

	// FailOn, if set, makes the named operation return this error once
	// and then clears itself — use for testing partial-failure recovery.
	FailOn map[string]error
}

var _ dnsprovider.Provider = (*Provider)(nil)

// NewProvider constructs a fake seeded with the given zone name -> id map.
func NewProvider(zones map[string]string) *Provider {
	return &Provider{Zones: zones, records: map[string]dnsprovider.Record{}, FailOn: map[string]error{}}
}

func (p *Provider) failure(op string) error {
	if err, ok := p.FailOn[op]; ok {
		delete(p.FailOn, op)
		return err
	}
	return nil
}

func (p *Provider) Init(context.Context) error {
	if len(p.Zones) == 0 {
		return fmt.Errorf("fake: no zones configured")
	}
	return nil
}

func (p *Provider) ResolveZone(_ context.Context, hostname string) (string, error) {
	labels := strings.Split(hostname, ".")
	for i := 0; i < len(labels); i++ {
		if id, ok := p.Zones[strings.Join(labels[i:], ".")]; ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %s", dnsprovider.ErrZoneNotFound, hostname)
}

func (p *Provider) ListRecords(ctx context.Context, hostname string) ([]dnsprovider.Record, error) {
	if err := p.failure("ListRecords"); err != nil {
		return nil, err
	}
	if _, err := p.ResolveZone(ctx, hostname); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var out []dnsprovider.Record
	for _, r := range p.records {
		if r.Hostname == hostname {
			out = append(out, r)
		}
	}
	return out, nil
}

func (p *Provider) CreateRecord(ctx context.Context, hostname, ip string, ttl int, proxied bool) (dnsprovider.Record, error) {
	if err := p.failure("CreateRecord"); err != nil {
		return dnsprovider.Record{}, err
	}
	zoneID, err := p.ResolveZone(ctx, hostname)
	if err != nil {
		return dnsprovider.Record{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	r := dnsprovider.Record{
		ID:       "rec-" + strconv.Itoa(p.nextID),
		ZoneID:   zoneID,
		Hostname: hostname,
		IP:       ip,
		TTL:      ttl,
		Proxied:  proxied,
	}
	p.records[r.ID] = r
	return r, nil
}

func (p *Provider) DeleteRecord(_ context.Context, recordID, _ string) error {
	if err := p.failure("DeleteRecord"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.records[recordID]; !ok {
		return fmt.Errorf("fake: record %s not found", recordID)
	}
	delete(p.records, recordID)
	return nil
}

func (p *Provider) DeleteRecordsByIP(ctx context.Context, hostname, ip string) ([]string, error) {
	if err := p.failure("DeleteRecordsByIP"); err != nil {
		return nil, err
	}
	records, err := p.ListRecords(ctx, hostname)
	if err != nil {
		return nil, err
	}
	var deleted []string
	for _, r := range records {
		if r.IP != ip {
			continue
		}
		if err := p.DeleteRecord(ctx, r.ID, r.ZoneID); err != nil {
			continue
		}
		deleted = append(deleted, r.ID)
	}
	return deleted, nil
}

func (p *Provider) SyncHostname(ctx context.Context, hostname string, validIPs map[string]struct{}) (dnsprovider.SyncResult, error) {
	if err := p.failure("SyncHostname"); err != nil {
		return dnsprovider.SyncResult{}, err
	}
	records, err := p.ListRecords(ctx, hostname)
	if err != nil {
		return dnsprovider.SyncResult{}, err
	}
	result := dnsprovider.SyncResult{}
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

func (p *Provider) HealthCheck(context.Context) dnsprovider.HealthStatus {
	if err := p.failure("HealthCheck"); err != nil {
		return dnsprovider.HealthStatus{Healthy: false, Error: err}
	}
	return dnsprovider.HealthStatus{Healthy: true, ZoneCount: len(p.Zones)}
}

// Records returns a snapshot of every record currently stored, for
// assertions in tests.
func (p *Provider) Records() []dnsprovider.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]dnsprovider.Record, 0, len(p.records))
	for _, r := range p.records {
		out = append(out, r)
	}
	return out
}
