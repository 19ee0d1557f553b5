// Package session holds the client-side view state of one gardener: the plant
// collection, the favorites list and the chore calendar. Every mutation waits
// for the authoritative server row and merges it only on success; failures
// leave local state untouched and come back as a Notice.
package session

import (
	"errors"
	"fmt"

	"gardenkeep/pkg/domain"
)

// NoticeLevel classifies a user-facing message.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeError   NoticeLevel = "error"
)

const (
	msgAlreadyFavorited  = "This plant is already in your favorites!"
	msgAlreadyCollected  = "This plant is already in your collection!"
	msgPermissionDenied  = "Permission denied. Please make sure you have run the database migration (docs/schema/sql) against your database."
	msgPlantNameRequired = "Please enter a plant name"
	msgPlantAdded        = "Plant added to your collection!"
	msgPlantRemoved      = "Plant removed from collection"
	msgSpeciesCollected  = "Added to your collection! Check the \"plants\" command."
	msgFavoriteAdded     = "Added to favorites!"
	msgFavoriteRemoved   = "Removed from favorites"
)

// Notice is a message for the user. Err is set for error notices.
type Notice struct {
	Level   NoticeLevel
	Message string
	Err     error
}

// Failed reports whether the notice carries an error.
func (n Notice) Failed() bool { return n.Level == NoticeError }

// String returns the message.
func (n Notice) String() string {
	return fmt.Sprintf("[%s] %s", n.Level, n.Message)
}

func success(msg string) Notice { return Notice{Level: NoticeSuccess, Message: msg} }

func info(msg string) Notice { return Notice{Level: NoticeInfo, Message: msg} }

// NoticeFor converts an operation error into the message shown to the user.
// A duplicate favorite is informational; everything else is an error.
func NoticeFor(err error) Notice {
	var (
		verr *domain.ValidationError
		cerr *domain.ConfigError
	)
	switch {
	case err == nil:
		return Notice{}
	case errors.Is(err, domain.ErrAlreadyFavorited):
		return info(msgAlreadyFavorited)
	case errors.Is(err, domain.ErrAccessDenied):
		return Notice{Level: NoticeError, Message: msgPermissionDenied, Err: err}
	case errors.As(err, &verr) && verr.Field == "name":
		return Notice{Level: NoticeError, Message: msgPlantNameRequired, Err: err}
	case errors.As(err, &cerr):
		return Notice{Level: NoticeError, Message: cerr.Error(), Err: err}
	default:
		return Notice{Level: NoticeError, Message: err.Error(), Err: err}
	}
}
