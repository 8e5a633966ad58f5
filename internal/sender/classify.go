package sender

import (
	"context"
	"errors"
	"net"
	"os"

	"github.com/tinytelemetry/netprobe/internal/model"
	"golang.org/x/sys/unix"
)

// classify maps a local send error to an attempt outcome.
func classify(err error) model.DeliveryOutcome {
	if err == nil {
		return model.OutcomeSuccess
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return model.OutcomeTimeout
	}
	if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
		return model.OutcomeTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return model.OutcomeTimeout
	}
	return model.OutcomeNetworkError
}

// isBrokenSocket reports whether err means the socket itself is unusable
// and must be replaced before another write can succeed.
func isBrokenSocket(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, unix.EBADF) ||
		errors.Is(err, unix.ENOTSOCK)
}
