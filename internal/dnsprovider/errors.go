package dnsprovider

import (
	"errors"

	"github.com/cloudflare/cloudflare-go"
	"go.uber.org/multierr"
)

// cloudflareAsError unwraps err looking for a *cloudflare.Error, the
// type the SDK returns for non-2xx API responses.
func cloudflareAsError(err error, target **cloudflare.Error) bool {
	return errors.As(err, target)
}

// joinErr accumulates errors without favoring the first over the rest,
// matching how SyncResult.Errors and DeleteRecordsByIP report partial
// batch failures.
func joinErr(into error, err error) error {
	return multierr.Append(into, err)
}
