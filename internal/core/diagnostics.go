package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"gardenkeep/pkg/domain"
)

// TableStatus reports whether one garden table exists.
type TableStatus struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
}

// CheckTables reports the presence of every garden table, in TableNames order.
func CheckTables(ctx context.Context, store domain.PersistentStore) ([]TableStatus, error) {
	found, err := store.Tables(ctx, domain.TableNames...)
	if err != nil {
		return nil, fmt.Errorf("check tables: %w", err)
	}
	out := make([]TableStatus, 0, len(domain.TableNames))
	for _, name := range domain.TableNames {
		out = append(out, TableStatus{Name: name, Exists: found[name]})
	}
	return out, nil
}

// MissingTables filters statuses down to the absent table names.
func MissingTables(statuses []TableStatus) []string {
	var missing []string
	for _, st := range statuses {
		if !st.Exists {
			missing = append(missing, st.Name)
		}
	}
	return missing
}

// PolicyProbe is the outcome of a favorites insert probe.
type PolicyProbe struct {
	InsertAllowed bool   `json:"insert_allowed"`
	BlockedByRLS  bool   `json:"blocked_by_policy"`
	Error         string `json:"error,omitempty"`
}

// ProbeSpeciesID is the species id the favorites probe writes.
const ProbeSpeciesID = "diagnostic-probe"

// errProbeRollback aborts the probe transaction once the insert succeeded.
var errProbeRollback = errors.New("probe rollback")

// ProbeFavoritesPolicy inserts and removes a probe favorite as a throwaway
// user, inside a transaction that is always rolled back. A policy that rejects
// the insert is reported as BlockedByRLS rather than as an error; only
// unexpected failures are returned.
func ProbeFavoritesPolicy(ctx context.Context, store domain.PersistentStore) (PolicyProbe, error) {
	owner := domain.UserID(uuid.NewString())
	err := store.RunInTransaction(ctx, owner, func(tx domain.Transaction) error {
		fav, err := tx.CreateFavorite(domain.Favorite{SpeciesID: ProbeSpeciesID, BotanicalName: "Probe"})
		if err != nil {
			return err
		}
		if err := tx.DeleteFavorite(fav.ID); err != nil {
			return err
		}
		return errProbeRollback
	})
	switch {
	case err == nil, errors.Is(err, errProbeRollback), errors.Is(err, domain.ErrAlreadyFavorited):
		return PolicyProbe{InsertAllowed: true}, nil
	case errors.Is(err, domain.ErrAccessDenied):
		return PolicyProbe{BlockedByRLS: true, Error: err.Error()}, nil
	default:
		return PolicyProbe{Error: err.Error()}, fmt.Errorf("probe favorites policy: %w", err)
	}
}
