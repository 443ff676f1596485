package app

import (
	"github.com/coreos/go-systemd/v22/daemon"

	logx "hourlypics/pkg/logx"
)

// sdNotify reports state to systemd. It is a no-op outside a
// Type=notify unit (NOTIFY_SOCKET unset).
func sdNotify(log logx.Logger, states ...string) {
	for _, st := range states {
		sent, err := daemon.SdNotify(false, st)
		if err != nil {
			log.Debug("sd_notify failed", logx.String("state", st), logx.Err(err))
			return
		}
		if !sent {
			return
		}
	}
}
