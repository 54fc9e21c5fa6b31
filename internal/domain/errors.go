package domain

import (
	"errors"

	"github.com/usched-go/usched/internal/errs"
)

var (
	ErrEntryNotFound         = errs.Wrap(errs.ErrUsage, errors.New("entry not found"))
	ErrDuplicateEntry        = errs.Wrap(errs.ErrUsage, errors.New("entry with this id already exists"))
	ErrExpireNotAfterTrigger = errs.Wrap(errs.ErrUsage, errors.New("expire time must be strictly after trigger time"))
	ErrTriggerInPast         = errs.Wrap(errs.ErrUsage, errors.New("trigger time is in the past"))
	// ErrOwnershipMismatch describes a DEL or GET that targets an entry
	// owned by a different uid/gid than the requester. The dispatcher does
	// not return it: such entries are skipped and the mismatch is logged.
	ErrOwnershipMismatch = errs.Wrap(errs.ErrAuthorization, errors.New("entry does not belong to requesting uid/gid"))
	ErrPoolFull          = errs.Wrap(errs.ErrResource, errors.New("pool has reached its configured entry limit"))
	ErrInvalidFlags      = errs.Wrap(errs.ErrProtocol, errors.New("flag set contains daemon-local bits on the wire"))
	ErrNotArmed          = errs.Wrap(errs.ErrResource, errors.New("entry has no scheduler handle"))
	ErrAlreadyArmed      = errs.Wrap(errs.ErrResource, errors.New("entry is already armed"))
)

// AdminCategory names one of the seven administrative property categories.
type AdminCategory string

const (
	CategoryDaemon AdminCategory = "daemon"
	CategoryExec   AdminCategory = "exec"
	CategoryAuth   AdminCategory = "auth"
	CategoryNetwork AdminCategory = "network"
	CategoryUsers  AdminCategory = "users"
	CategoryIPC    AdminCategory = "ipc"
	CategoryStat   AdminCategory = "stat"
)

var AllCategories = []AdminCategory{
	CategoryDaemon, CategoryExec, CategoryAuth, CategoryNetwork,
	CategoryUsers, CategoryIPC, CategoryStat,
}

var (
	ErrUnknownCategory    = errs.Wrap(errs.ErrUsage, errors.New("unknown admin category"))
	ErrUnknownProperty    = errs.Wrap(errs.ErrUsage, errors.New("unknown admin property"))
	ErrNoStagedChange     = errs.Wrap(errs.ErrUsage, errors.New("no staged change to commit or rollback"))
	ErrPIDFileActive      = errs.Wrap(errs.ErrResource, errors.New("category requires the daemon to be stopped before changes"))
	ErrUserRecordNotFound = errs.Wrap(errs.ErrAuth, errors.New("no admin user record for this username"))
)

// AdminUser is a locally authorized PAKE client, stored as one record per
// username in the users category. Salt matches internal/crypto.DeriveSalt's
// BLAKE2s-256 output width.
type AdminUser struct {
	UID  uint32
	GID  uint32
	Salt [32]byte
	Hash []byte
}
