// uexecd is the reference executor daemon: it binds the dispatch IPC
// socket, runs each dispatched command as the requesting uid/gid, and
// reports the outcome back to usched's stat socket. Grounded on
// original_source/include/stat.h's usched_stat_exec result shape and
// original_source/src/notify.c's fork/exec/wait pattern (here as
// os/exec plus a privilege-dropping SysProcAttr instead of a raw
// fork+setuid+execve sequence).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/usched-go/usched/internal/ipc"
)

func main() {
	dispatchSocket := flag.String("dispatch-socket", "/var/run/usched/uexecd.sock", "path this executor binds to receive dispatch messages")
	statSocket := flag.String("stat-socket", "/var/run/usched/ustatd.sock", "path the daemon's stat listener is bound to")
	sendTimeout := flag.Duration("stat-send-timeout", ipc.DefaultSendTimeout, "how long a stat report waits for admission/write before failing")
	maxInFlight := flag.Int("stat-max-in-flight", ipc.DefaultMaxInFlight, "max concurrent stat reports admitted before blocking the caller")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatchQueue, err := ipc.Listen(*dispatchSocket)
	if err != nil {
		logger.Error("bind dispatch socket", "error", err)
		os.Exit(1)
	}
	defer dispatchQueue.Close()

	statQueue, err := ipc.Dial(*statSocket, ipc.WithMaxInFlight(*maxInFlight), ipc.WithSendTimeout(*sendTimeout))
	if err != nil {
		logger.Warn("stat socket unreachable at startup, reports will be dropped until it is", "error", err)
	}

	logger.Info("uexecd listening", "dispatch_socket", *dispatchSocket)
	runLoop(ctx, dispatchQueue, statQueue, logger)
}

// runLoop receives dispatch messages until ctx is cancelled, running each
// in its own goroutine so a slow or hung command never blocks the next
// dispatch's pickup.
func runLoop(ctx context.Context, dispatchQueue, statQueue *ipc.Queue, logger *slog.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}
		buf, err := dispatchQueue.Receive(time.Second)
		if err != nil {
			continue
		}
		msg, err := ipc.DecodeDispatchMessage(buf)
		if err != nil {
			logger.Warn("dropping malformed dispatch message", "error", err)
			continue
		}
		go handleDispatch(msg, statQueue, logger)
	}
}

func handleDispatch(msg ipc.DispatchMessage, statQueue *ipc.Queue, logger *slog.Logger) {
	start := time.Now()
	result := runCommand(msg.UID, msg.GID, msg.Cmd)
	end := time.Now()

	logger.Info("entry executed", "entry_id", msg.EntryID, "uid", msg.UID, "pid", result.pid, "status", result.status)

	if statQueue == nil {
		return
	}
	report := ipc.StatMessage{
		EntryID:         msg.EntryID,
		UID:             msg.UID,
		GID:             msg.GID,
		PID:             int32(result.pid),
		Status:          int32(result.status),
		TriggerUnixNano: start.UnixNano(),
		StartUnixNano:   start.UnixNano(),
		EndUnixNano:     end.UnixNano(),
		OutData:         result.output,
	}
	if err := statQueue.Send(mustEncode(report)); err != nil {
		logger.Warn("stat report send failed", "entry_id", msg.EntryID, "error", err)
	}
}

func mustEncode(msg ipc.StatMessage) []byte {
	buf, err := msg.Encode()
	if err != nil {
		// Only returns an error when OutData overflows the IPC message
		// cap; truncate rather than lose the report entirely.
		msg.OutData = msg.OutData[:0]
		buf, _ = msg.Encode()
	}
	return buf
}
