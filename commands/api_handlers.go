package commands

import (
	"errors"
	"net/http"

	"github.com/Lord-Y/ordinator"
	"github.com/gin-gonic/gin"
)

// httpStatus maps an ordinator error to an http status code
func httpStatus(err error) int {
	switch {
	case errors.Is(err, ordinator.ErrNotReady), errors.Is(err, ordinator.ErrNotLeader), errors.Is(err, ordinator.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ordinator.ErrUnitNotFound):
		return http.StatusNotFound
	case errors.Is(err, ordinator.ErrInvalidArgument):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// healthz tells the process is alive
func (a *api) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

// readyz tells if the process serves authoritative answers
func (a *api) readyz(c *gin.Context) {
	if !a.ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ordinator.ErrNotReady.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

// fetchMembers returns every known member
func (a *api) fetchMembers(c *gin.Context) {
	members, err := a.coordinator.ListMembers()
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}

	data := make([]memberView, 0, len(members))
	for _, member := range members {
		data = append(data, memberView{
			ID:            member.ID,
			Incarnation:   member.Incarnation,
			Address:       member.Address,
			Status:        member.Status.String(),
			Source:        member.Source.String(),
			LastHeartbeat: member.LastHeartbeat,
			JoinedAt:      member.JoinedAt,
			StatusSince:   member.StatusSince,
		})
	}
	c.JSON(http.StatusOK, data)
}

// toAssignmentView converts an assignment into its json representation
func toAssignmentView(entry ordinator.AssignmentEntry) assignmentView {
	return assignmentView{
		UnitID:           entry.UnitID,
		OwnerID:          entry.OwnerID,
		OwnerIncarnation: entry.OwnerIncarnation,
		Epoch:            entry.Epoch,
		Sequence:         entry.Sequence,
	}
}

// fetchAssignments returns the assignment of every unit
func (a *api) fetchAssignments(c *gin.Context) {
	if !a.coordinator.IsReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ordinator.ErrNotReady.Error()})
		return
	}

	snapshot := a.coordinator.Snapshot()
	data := assignmentsView{
		Version:     snapshot.Version,
		Epoch:       snapshot.Epoch,
		Assignments: make([]assignmentView, 0, len(snapshot.Units)),
	}
	for _, unit := range snapshot.Units {
		entry, ok := snapshot.Assignment(unit)
		if !ok {
			entry.UnitID = unit
		}
		data.Assignments = append(data.Assignments, toAssignmentView(entry))
	}
	c.JSON(http.StatusOK, data)
}

// fetchAssignment returns the assignment of a single unit
func (a *api) fetchAssignment(c *gin.Context) {
	entry, err := a.coordinator.GetAssignment(c.Params.ByName("unit"))
	if err != nil && !errors.Is(err, ordinator.ErrUnavailable) {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toAssignmentView(entry))
}

// createUnits declares new units of work
func (a *api) createUnits(c *gin.Context) {
	var data declareUnits

	if err := c.ShouldBind(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	added, err := a.coordinator.DeclareUnits(c.Request.Context(), data.Units)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	if added == nil {
		added = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}
