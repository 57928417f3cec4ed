package commands

import (
	"net/http"
	"time"

	"github.com/Lord-Y/ordinator"
	"github.com/rs/zerolog"
)

// api hold the admin http server requirements
type api struct {
	// logger expose zerolog so it can be override
	logger *zerolog.Logger

	// coordinator is nil when serving the logservice
	coordinator *ordinator.Coordinator

	// ready tells if the process serves authoritative answers
	ready func() bool

	// server hold the config of the HTTP API server
	server *http.Server
}

// memberView is the json representation of a member
type memberView struct {
	ID            string    `json:"id"`
	Incarnation   string    `json:"incarnation"`
	Address       string    `json:"address,omitempty"`
	Status        string    `json:"status"`
	Source        string    `json:"source"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	JoinedAt      time.Time `json:"joinedAt"`
	StatusSince   time.Time `json:"statusSince"`
}

// assignmentView is the json representation of an assignment
type assignmentView struct {
	UnitID           string `json:"unitId"`
	OwnerID          string `json:"ownerId,omitempty"`
	OwnerIncarnation string `json:"ownerIncarnation,omitempty"`
	Epoch            uint64 `json:"epoch"`
	Sequence         uint64 `json:"sequence"`
}

// assignmentsView is the json representation of the assignment table
type assignmentsView struct {
	Version     uint64           `json:"version"`
	Epoch       uint64           `json:"epoch"`
	Assignments []assignmentView `json:"assignments"`
}

// declareUnits is the body used to declare units
type declareUnits struct {
	Units []string `form:"units" json:"units" binding:"required"`
}
