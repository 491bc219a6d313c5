package invoicesrpc

import (
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/fiberlabs/fnd/invoices"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Config contains dependencies for the invoice methods.
type Config struct {
	// Store is shared with other callers, so it must be safe for
	// concurrent use, like invoices.SyncStore or invoices.KVStore.
	Store invoices.InvoiceStore

	// Clock stamps new invoices and decides whether stored invoices are
	// expired.
	Clock clock.Clock

	// NodeSigner signs new invoices with the identity key of the node.
	// Invoices are left unsigned when it is None.
	NodeSigner fn.Option[*fpay32.NodeSigner]
}
