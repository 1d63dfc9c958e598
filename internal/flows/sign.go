package flows

import (
	"context"
	"strconv"

	"github.com/MrEthical07/goRewards/client"
	"github.com/MrEthical07/goRewards/wallet"
)

// RewardsMessage is the challenge an account signs to authenticate.
func RewardsMessage(address string, timestamp int64) string {
	return "rewards," + address + "," + strconv.FormatInt(timestamp, 10)
}

// signedCall signs the rewards message for account at the current time and
// passes it to call. When the backend rejects the timestamp, the message is
// re-signed with the server clock and call is retried exactly once.
func signedCall[T any](
	ctx context.Context,
	d Deps,
	account wallet.Account,
	call func(ctx context.Context, timestamp int64, signature string) (T, error),
) (T, error) {
	var zero T
	ts := d.Now().Unix()
	sig, err := d.Signer.SignMessage(ctx, account, RewardsMessage(account.Address, ts))
	if err != nil {
		return zero, &signError{err: err}
	}

	out, err := call(ctx, ts, sig)
	ite, ok := client.AsInvalidTimestamp(err)
	if !ok {
		return out, err
	}

	d.MetricInc(d.Metrics.TimestampRetry)
	d.Logger.Debug().
		Str("address", account.Address).
		Int64("client_ts", ts).
		Int64("server_ts", ite.ServerTimestamp).
		Msg("re-signing with server timestamp")

	sig, err = d.Signer.SignMessage(ctx, account, RewardsMessage(account.Address, ite.ServerTimestamp))
	if err != nil {
		return zero, &signError{err: err}
	}
	return call(ctx, ite.ServerTimestamp, sig)
}

// signError marks a failure of the signing collaborator, as opposed to the
// backend call that follows it.
type signError struct {
	err error
}

func (e *signError) Error() string { return "sign rewards message: " + e.err.Error() }

func (e *signError) Unwrap() error { return e.err }
