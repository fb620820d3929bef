package broker

// Optional socket-event monitoring, adapted from the teacher's
// core/mdp/broker.go initMonitor helper. Disabled by default; enabled
// only at trace log level, since it doubles the number of background
// pollers the router runs.

import (
	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"
)

// watchSocket starts a background monitor on sock, logging CONNECT,
// ACCEPT, CLOSE and DISCONNECT events at debug level. It is only worth
// the extra poller when trace-level diagnostics are wanted, so callers
// should gate this behind the configured log level.
func watchSocket(name string, sock *czmq.Sock) {
	monitor := czmq.NewMonitor(sock)

	_ = monitor.Verbose()
	_ = monitor.Listen("CONNECTED")
	_ = monitor.Listen("CONNECT_DELAYED")
	_ = monitor.Listen("CONNECT_RETRIED")
	_ = monitor.Listen("LISTENING")
	_ = monitor.Listen("BIND_FAILED")
	_ = monitor.Listen("ACCEPTED")
	_ = monitor.Listen("ACCEPT_FAILED")
	_ = monitor.Listen("CLOSED")
	_ = monitor.Listen("CLOSE_FAILED")
	_ = monitor.Listen("DISCONNECTED")
	_ = monitor.Listen("MONITOR_STOPPED")

	if err := monitor.Start(); err != nil {
		log.WithFields(log.Fields{"socket": name, "error": err}).Error("failed to start socket monitor")
		monitor.Destroy()
		return
	}

	go func() {
		defer monitor.Destroy()

		poller, err := czmq.NewPoller(monitor.Socket())
		if err != nil {
			log.WithFields(log.Fields{"socket": name, "error": err}).Error("failed to create monitor poller")
			return
		}
		defer poller.Destroy()

		for {
			s, err := poller.Wait(int(DefaultPollTimeout.Milliseconds()))
			if err != nil {
				log.WithFields(log.Fields{"socket": name, "error": err}).Error("monitor poller error")
				return
			}
			if s == nil {
				continue
			}

			frames, err := s.RecvMessage()
			if err != nil || len(frames) == 0 {
				continue
			}

			log.WithFields(log.Fields{"socket": name, "event": string(frames[0])}).Debug("socket event")
		}
	}()
}

// maybeWatch installs watchSocket on sock when the standard logger is at
// trace level, matching ASYNC_MESSAGED_LOG_LEVEL=trace in the config.
func maybeWatch(name string, sock *czmq.Sock) {
	if log.GetLevel() < log.TraceLevel {
		return
	}
	watchSocket(name, sock)
}
