package component

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// stopper registers a cancelable stop signal under the watchdog cleanup tag.
// Running the tag, or draining the registry, stops every watcher.
func (i *Instance) stopper() <-chan struct{} {
	stop := make(chan struct{})
	var once sync.Once
	i.clean.RegisterTagged(cleanupWatchdog, func(context.Context) error {
		once.Do(func() { close(stop) })
		return nil
	})
	return stop
}

// startCloseWatch polls the child window and triggers teardown when it has
// disappeared without telling us.
func (i *Instance) startCloseWatch() {
	stop := i.stopper()
	interval := i.engine.settings.ClosePollInterval

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				win := i.proxyWindow()
				if win == nil || !win.IsClosed() {
					continue
				}
				i.log.Info("child window gone, closing instance")
				if err := i.Close(context.Background(), ReasonCloseDetected); err != nil {
					i.log.Warn("close after detection failed", zap.Error(err))
				}
				return
			}
		}
	}()
}

// startUnloadWatch force-destroys the instance when the host page unloads.
// Not a graceful close: no close events, no child round trip; there is no
// one left to answer.
func (i *Instance) startUnloadWatch() {
	stop := i.stopper()

	go func() {
		select {
		case <-stop:
			return
		case <-i.engine.unload.Done():
			i.reasonOnce.Do(func() { i.closeReason = ReasonUnload })
			if err := i.Destroy(context.Background()); err != nil {
				i.log.Warn("unload teardown failed", zap.Error(err))
			}
		}
	}()
}

// armInitTimeout fails the instance if the child never completes its init
// handshake within the render timeout. Settling the handshake either way
// disarms it; so does any teardown path, via the watchdog cleanup tag.
func (i *Instance) armInitTimeout() {
	timeout := i.engine.renderTimeout(i.opts)
	if timeout <= 0 {
		return
	}
	stop := i.stopper()

	go func() {
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-stop:
		case <-i.initialized.Done():
		case <-t.C:
			err := newError(KindTimeout,
				"component %q did not initialize within %s", i.def.Tag, timeout)
			_ = i.Error(context.Background(), err)
		}
	}()
}
