package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/partypool/partypool/pkg/events"
	"github.com/partypool/partypool/pkg/mailer"
	"github.com/partypool/partypool/pkg/metrics"
	"github.com/partypool/partypool/pkg/storage"
	"github.com/partypool/partypool/pkg/types"
)

// ClusterView is the joinable-cluster listing served to users. Internal
// details (provisioning name, address, port map) stay hidden until a join
// succeeds.
type ClusterView struct {
	ID            int64         `json:"clusterId"`
	AppCount      int           `json:"applicationCount"`
	ServiceCount  int           `json:"serviceCount"`
	UserCount     int           `json:"userCount"`
	MaxUsers      int           `json:"maxUsers"`
	TimeRemaining time.Duration `json:"timeRemaining"`
}

// PartyStatus summarizes what a user can do with the pool right now
type PartyStatus string

const (
	// PartyStatusJoined means the user already occupies a cluster
	PartyStatusJoined PartyStatus = "joined"
	// PartyStatusOpen means at least one cluster can accept the user
	PartyStatusOpen PartyStatus = "open"
	// PartyStatusClosed means no cluster currently has room
	PartyStatusClosed PartyStatus = "closed"
)

// JoinedDetails locates the cluster a joined user occupies
type JoinedDetails struct {
	ClusterID int64  `json:"clusterId"`
	Address   string `json:"address"`
	Port      int    `json:"port"`
}

// PartyState is the result of a party status query
type PartyState struct {
	Status PartyStatus    `json:"status"`
	Joined *JoinedDetails `json:"joined,omitempty"`
}

// GetClusterList returns the clusters users may join right now: ready and
// not expired, newest first.
func (o *Orchestrator) GetClusterList(ctx context.Context) ([]ClusterView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := o.config()
	now := time.Now().UTC()

	var views []ClusterView
	err := o.store.View(func(tx storage.ReadTx) error {
		clusters, err := tx.ListClusters()
		if err != nil {
			return err
		}

		sort.Slice(clusters, func(i, j int) bool {
			return clusters[i].CreatedOn.After(clusters[j].CreatedOn)
		})

		views = make([]ClusterView, 0, len(clusters))
		for _, c := range clusters {
			if c.Status != types.ClusterStatusReady || c.Expired(now, cfg.MaximumClusterUptime) {
				continue
			}
			views = append(views, ClusterView{
				ID:            c.ID,
				AppCount:      c.AppCount,
				ServiceCount:  c.ServiceCount,
				UserCount:     len(c.Users),
				MaxUsers:      cfg.MaximumUsersPerCluster,
				TimeRemaining: c.TimeRemaining(now, cfg.MaximumClusterUptime),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// JoinCluster admits userID onto the given cluster: it checks the whole map
// for an existing membership, validates the target, assigns the lowest free
// port, sends the notification mail, and persists the updated record. All of
// it runs in one transaction; if the mail cannot be sent the user is not
// admitted.
func (o *Orchestrator) JoinCluster(ctx context.Context, clusterID int64, userID string) error {
	_, err := o.admit(ctx, clusterID, userID)
	return err
}

// admit runs the join and accounts for it, returning where the user landed
func (o *Orchestrator) admit(ctx context.Context, clusterID int64, userID string) (JoinedDetails, error) {
	details, err := o.join(ctx, clusterID, userID)
	if err != nil {
		if joinErr, ok := AsJoinError(err); ok {
			metrics.JoinsTotal.WithLabelValues(string(joinErr.Reason)).Inc()
		} else {
			metrics.JoinsTotal.WithLabelValues("error").Inc()
		}
		return JoinedDetails{}, err
	}
	metrics.JoinsTotal.WithLabelValues("joined").Inc()
	o.publish(events.ClusterEvent(events.EventUserJoined, clusterID, fmt.Sprintf("user %s joined", userID)))
	return details, nil
}

func (o *Orchestrator) join(ctx context.Context, clusterID int64, userID string) (JoinedDetails, error) {
	if err := ctx.Err(); err != nil {
		return JoinedDetails{}, err
	}

	cfg := o.config()
	now := time.Now().UTC()

	var details JoinedDetails
	err := o.store.Update(func(tx storage.Tx) error {
		clusters, err := tx.ListClusters()
		if err != nil {
			return err
		}
		for _, c := range clusters {
			if c.HasUser(userID) {
				return refuse(ReasonUserAlreadyJoined)
			}
		}

		cluster, err := tx.GetCluster(clusterID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return refuse(ReasonClusterDoesNotExist)
			}
			return err
		}

		switch {
		case cluster.Status == types.ClusterStatusDeleted:
			return refuse(ReasonClusterDoesNotExist)
		case cluster.Expired(now, cfg.MaximumClusterUptime):
			return refuse(ReasonClusterExpired)
		case cluster.Status != types.ClusterStatusReady:
			return refuse(ReasonClusterNotReady)
		case len(cluster.Users) >= cfg.MaximumUsersPerCluster:
			return refuse(ReasonClusterFull)
		}

		port, ok := cluster.NextFreePort()
		if !ok {
			return refuse(ReasonNoPortsAvailable)
		}

		next := cluster.WithUser(types.ClusterUser{UserID: userID, Port: port}, now)

		mail := mailer.JoinMail{
			UserID:  userID,
			Address: next.Address,
			Port:    port,
			Expires: now.Add(next.TimeRemaining(now, cfg.MaximumClusterUptime)),
		}
		if err := o.mailer.SendJoinMail(ctx, mail); err != nil {
			return &JoinError{Reason: ReasonSendMailFailed, Err: err}
		}

		details = JoinedDetails{ClusterID: clusterID, Address: next.Address, Port: port}
		return tx.PutCluster(&next)
	})
	if err != nil {
		return JoinedDetails{}, err
	}
	return details, nil
}

// JoinRandomCluster tries eligible clusters in random order until one admits
// the user. Capacity refusals move on to the next candidate; a membership or
// mail failure is final. With no candidates left the party is closed: the
// caller gets a closed PartyState, not an error.
func (o *Orchestrator) JoinRandomCluster(ctx context.Context, userID string) (PartyState, error) {
	cfg := o.config()
	now := time.Now().UTC()

	var candidates []int64
	err := o.store.View(func(tx storage.ReadTx) error {
		clusters, err := tx.ListClusters()
		if err != nil {
			return err
		}
		for _, c := range clusters {
			if c.Status != types.ClusterStatusReady || c.Expired(now, cfg.MaximumClusterUptime) {
				continue
			}
			if len(c.Users) >= cfg.MaximumUsersPerCluster {
				continue
			}
			candidates = append(candidates, c.ID)
		}
		return nil
	})
	if err != nil {
		return PartyState{}, err
	}

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	for _, id := range candidates {
		details, err := o.admit(ctx, id, userID)
		if err == nil {
			joined := details
			return PartyState{Status: PartyStatusJoined, Joined: &joined}, nil
		}
		if joinErr, ok := AsJoinError(err); ok {
			switch joinErr.Reason {
			case ReasonUserAlreadyJoined, ReasonSendMailFailed:
				return PartyState{}, err
			default:
				// Lost the race on this cluster, try the next one
				continue
			}
		}
		return PartyState{}, err
	}
	return PartyState{Status: PartyStatusClosed}, nil
}

// GetPartyStatus reports whether the user is already on a cluster, could
// join one, or is out of luck.
func (o *Orchestrator) GetPartyStatus(ctx context.Context, userID string) (PartyState, error) {
	if err := ctx.Err(); err != nil {
		return PartyState{}, err
	}

	cfg := o.config()
	now := time.Now().UTC()

	state := PartyState{Status: PartyStatusClosed}
	err := o.store.View(func(tx storage.ReadTx) error {
		clusters, err := tx.ListClusters()
		if err != nil {
			return err
		}
		for _, c := range clusters {
			for _, u := range c.Users {
				if u.UserID == userID {
					state = PartyState{
						Status: PartyStatusJoined,
						Joined: &JoinedDetails{ClusterID: c.ID, Address: c.Address, Port: u.Port},
					}
					return nil
				}
			}
		}
		for _, c := range clusters {
			if c.Status != types.ClusterStatusReady || c.Expired(now, cfg.MaximumClusterUptime) {
				continue
			}
			if len(c.Users) < cfg.MaximumUsersPerCluster {
				state = PartyState{Status: PartyStatusOpen}
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return PartyState{}, err
	}
	return state, nil
}
