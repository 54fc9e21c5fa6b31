// uclient is a one-shot CLI that submits scheduling sentences to a running
// usched daemon over its local UNIX socket, adapted from the teacher's
// cmd/seed/main.go (a one-shot client hitting a running service) onto
// uSched's entry-submission wire protocol instead of seeding Postgres rows.
package main

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/usched-go/usched/internal/domain"
	"github.com/usched-go/usched/internal/parser"
	"github.com/usched-go/usched/internal/wire"
)

var socketPath string

var rootCmd = &cobra.Command{
	Use:   "uclient",
	Short: "Submit scheduling requests to a running usched daemon",
}

var newCmd = &cobra.Command{
	Use:   "new [sentence...]",
	Short: "Parse and submit a scheduling sentence (e.g. `run \"date\" in 5 minutes`)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitNew(strings.Join(args, " "))
	},
}

var delCmd = &cobra.Command{
	Use:   "del [id...]",
	Short: "Delete entries by id, or every entry you own if none are given",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		return submitIDList(domain.FlagDel, ids)
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id...]",
	Short: "Show entries by id, or every entry you own if none are given",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		return submitGet(ids)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "/var/run/usched/usched.sock", "daemon local socket path")
	rootCmd.AddCommand(newCmd, delCmd, getCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "uclient:", err)
		os.Exit(1)
	}
}

func parseIDs(args []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid entry id %q: %w", a, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// currentIdentity resolves the local OS uid/gid, matching what
// internal/auth.VerifyLocal will check against the socket's peer
// credentials server-side.
func currentIdentity() (uid, gid uint32, username string, err error) {
	u, err := user.Current()
	if err != nil {
		return 0, 0, "", fmt.Errorf("resolve current user: %w", err)
	}
	uidN, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, 0, "", fmt.Errorf("parse uid: %w", err)
	}
	gidN, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return 0, 0, "", fmt.Errorf("parse gid: %w", err)
	}
	return uint32(uidN), uint32(gidN), u.Username, nil
}

func submitNew(sentence string) error {
	requests, perr := parser.Parse(sentence)
	if perr != nil {
		return fmt.Errorf("parse: %w", perr)
	}
	if len(requests) == 0 {
		return fmt.Errorf("sentence compiled to no requests")
	}

	uid, gid, username, err := currentIdentity()
	if err != nil {
		return err
	}

	for _, req := range requests {
		compiled, perr := parser.Compile(req, time.Now())
		if perr != nil {
			return fmt.Errorf("compile: %w", perr)
		}
		entry := compiled.ToEntry(uid, gid)
		id, err := sendEntry(entry, username)
		if err != nil {
			return err
		}
		fmt.Printf("entry %d admitted: %s\n", id, entry.Subj)
	}
	return nil
}

func submitIDList(flag domain.Flag, ids []uint64) error {
	uid, gid, username, err := currentIdentity()
	if err != nil {
		return err
	}
	entry := domain.NewEntry(flag)
	entry.UID = uid
	entry.GID = gid
	entry.Payload = wire.EncodeIDList(ids)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("dial %s: %w", socketPath, err)
	}
	defer conn.Close()

	if err := writeRequest(conn, entry, username); err != nil {
		return err
	}
	reply, err := wire.ReadFrame(conn, 0)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	removedIDs, err := wire.DecodeIDList(reply)
	if err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	for _, id := range removedIDs {
		fmt.Println("removed", id)
	}
	return nil
}

func submitGet(ids []uint64) error {
	uid, gid, username, err := currentIdentity()
	if err != nil {
		return err
	}
	entry := domain.NewEntry(domain.FlagGet)
	entry.UID = uid
	entry.GID = gid
	entry.Payload = wire.EncodeIDList(ids)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("dial %s: %w", socketPath, err)
	}
	defer conn.Close()

	if err := writeRequest(conn, entry, username); err != nil {
		return err
	}
	reply, err := wire.ReadFrame(conn, 0)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	records, err := wire.DecodeGetReply(reply)
	if err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	for _, rec := range records {
		fmt.Printf("%d\t%s\t%s\texec=%d ok=%d fail=%d\n", rec.ID, rec.Username, rec.Subj, rec.NrExec, rec.NrOK, rec.NrFail)
	}
	return nil
}

// sendEntry submits a NEW entry over a fresh connection and returns its
// assigned id.
func sendEntry(entry *domain.Entry, username string) (uint64, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	defer conn.Close()

	if err := writeRequest(conn, entry, username); err != nil {
		return 0, err
	}
	reply, err := wire.ReadFrame(conn, 0)
	if err != nil {
		return 0, fmt.Errorf("read reply: %w", err)
	}
	return wire.DecodeNewReply(reply)
}

// writeRequest encodes entry as a local (cleartext) header followed by its
// payload, mirroring internal/transport's unframed local-connection read
// path exactly in reverse.
func writeRequest(conn net.Conn, entry *domain.Entry, username string) error {
	header := &wire.EntryHeader{
		Flags:   uint32(entry.Flags.WireValue()),
		UID:     entry.UID,
		GID:     entry.GID,
		Trigger: uint32(entry.Trigger.Unix()),
		Step:    uint32(entry.Step / time.Second),
	}
	if !entry.Expire.IsZero() {
		header.Expire = uint32(entry.Expire.Unix())
	}
	header.SetUsername(username)

	var payload []byte
	if entry.Flags.Has(domain.FlagNew) {
		payload = []byte(entry.Subj)
	} else {
		payload = entry.Payload
	}
	header.PSize = uint32(len(payload))

	if _, err := conn.Write(header.Encode()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := conn.Write(payload); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
	}
	return nil
}
