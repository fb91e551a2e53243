package blockpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blockpool/testutil"
)

// tracked reports its destruction to a ledger.
type tracked struct {
	id      uint32
	ledger  *testutil.Ledger
	value   int
	err     error
	panicky bool
}

func (o *tracked) Destroy() error {
	if o.ledger != nil {
		if err := o.ledger.Destroy(o.id); err != nil {
			return err
		}
	}
	if o.panicky {
		panic("tracked: destroy")
	}
	return o.err
}

func newTracked(l *testutil.Ledger, v int) func(*tracked) error {
	return func(o *tracked) error {
		o.id = l.Create()
		o.ledger = l
		o.value = v
		return nil
	}
}

// stubAbort records abort messages instead of exiting.
func stubAbort(t *testing.T) *[]string {
	t.Helper()
	var msgs []string
	prev := abort
	abort = func(msg string) { msgs = append(msgs, msg) }
	t.Cleanup(func() { abort = prev })
	return &msgs
}

func requireClose(t *testing.T, p interface{ Close() error }) {
	t.Helper()
	msgs := stubAbort(t)
	require.NoError(t, p.Close())
	require.Empty(t, *msgs)
}
