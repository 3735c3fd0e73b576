package project

import (
	"encoding/json"
	"fmt"

	"github.com/Priya8975/marketplace/internal/domain"
)

// AggregateName is the stream family of project events.
const AggregateName = "Project"

// Event is the sealed set of project events.
type Event interface {
	domain.Event
	ProjectID() domain.ProjectID
	isProjectEvent()
}

type Created struct {
	ID domain.ProjectID `json:"id"`
}

type LeaderAssigned struct {
	ID       domain.ProjectID `json:"id"`
	LeaderID domain.UserID    `json:"leader_id"`
}

type LeaderUnassigned struct {
	ID       domain.ProjectID `json:"id"`
	LeaderID domain.UserID    `json:"leader_id"`
}

type GithubRepoLinked struct {
	ID           domain.ProjectID    `json:"id"`
	GithubRepoID domain.GithubRepoID `json:"github_repo_id"`
}

type GithubRepoUnlinked struct {
	ID           domain.ProjectID    `json:"id"`
	GithubRepoID domain.GithubRepoID `json:"github_repo_id"`
}

func (e Created) ProjectID() domain.ProjectID            { return e.ID }
func (e LeaderAssigned) ProjectID() domain.ProjectID     { return e.ID }
func (e LeaderUnassigned) ProjectID() domain.ProjectID   { return e.ID }
func (e GithubRepoLinked) ProjectID() domain.ProjectID   { return e.ID }
func (e GithubRepoUnlinked) ProjectID() domain.ProjectID { return e.ID }

func (e Created) AggregateID() string            { return e.ID.String() }
func (e LeaderAssigned) AggregateID() string     { return e.ID.String() }
func (e LeaderUnassigned) AggregateID() string   { return e.ID.String() }
func (e GithubRepoLinked) AggregateID() string   { return e.ID.String() }
func (e GithubRepoUnlinked) AggregateID() string { return e.ID.String() }

func (Created) AggregateName() string            { return AggregateName }
func (LeaderAssigned) AggregateName() string     { return AggregateName }
func (LeaderUnassigned) AggregateName() string   { return AggregateName }
func (GithubRepoLinked) AggregateName() string   { return AggregateName }
func (GithubRepoUnlinked) AggregateName() string { return AggregateName }

func (Created) EventType() string            { return "Created" }
func (LeaderAssigned) EventType() string     { return "LeaderAssigned" }
func (LeaderUnassigned) EventType() string   { return "LeaderUnassigned" }
func (GithubRepoLinked) EventType() string   { return "GithubRepoLinked" }
func (GithubRepoUnlinked) EventType() string { return "GithubRepoUnlinked" }

func (Created) isProjectEvent()            {}
func (LeaderAssigned) isProjectEvent()     {}
func (LeaderUnassigned) isProjectEvent()   {}
func (GithubRepoLinked) isProjectEvent()   {}
func (GithubRepoUnlinked) isProjectEvent() {}

// Decode rebuilds a project event from its type name and JSON payload.
func Decode(eventType string, payload []byte) (Event, error) {
	switch eventType {
	case "Created":
		return decodeAs[Created](eventType, payload)
	case "LeaderAssigned":
		return decodeAs[LeaderAssigned](eventType, payload)
	case "LeaderUnassigned":
		return decodeAs[LeaderUnassigned](eventType, payload)
	case "GithubRepoLinked":
		return decodeAs[GithubRepoLinked](eventType, payload)
	case "GithubRepoUnlinked":
		return decodeAs[GithubRepoUnlinked](eventType, payload)
	default:
		return nil, fmt.Errorf("unknown project event type %q", eventType)
	}
}

func decodeAs[T Event](eventType string, payload []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("decoding project %s: %w", eventType, err)
	}
	return v, nil
}
