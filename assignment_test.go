package ordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_plan(t *testing.T) {
	t.Run("orphans_go_to_least_loaded", func(t *testing.T) {
		assert := assert.New(t)
		h := &history{t: t}
		h.units("u1", "u2", "u3", "u4", "u5").
			member(memberJoin, "a", "i1").member(memberActivate, "a", "i1").
			member(memberJoin, "b", "i1").member(memberActivate, "b", "i1").
			member(memberJoin, "c", "i1").member(memberActivate, "c", "i1").
			epoch(1).
			assign("u1", "a", "i1", 1).
			assign("u2", "a", "i1", 1).
			assign("u3", "c", "i1", 1).
			member(memberDepart, "a", "i1")
		snapshot, err := h.fold()
		require.Nil(t, err)

		changes, unassigned := (&Engine{}).plan(snapshot)
		assert.Zero(unassigned)
		assert.Equal([]assignmentCommand{
			{UnitID: "u1", OwnerID: "b", OwnerIncarnation: "i1"},
			{UnitID: "u2", OwnerID: "b", OwnerIncarnation: "i1"},
			{UnitID: "u4", OwnerID: "c", OwnerIncarnation: "i1"},
			{UnitID: "u5", OwnerID: "b", OwnerIncarnation: "i1"},
		}, changes)

		again, _ := (&Engine{}).plan(snapshot)
		assert.Equal(changes, again)
	})

	t.Run("active_owners_keep_units", func(t *testing.T) {
		assert := assert.New(t)
		h := &history{t: t}
		h.units("u1", "u2").
			member(memberJoin, "a", "i1").member(memberActivate, "a", "i1").
			member(memberJoin, "b", "i1").member(memberActivate, "b", "i1").
			epoch(1).
			assign("u1", "a", "i1", 1).
			assign("u2", "a", "i1", 1)
		snapshot, err := h.fold()
		require.Nil(t, err)

		changes, unassigned := (&Engine{}).plan(snapshot)
		assert.Empty(changes)
		assert.Zero(unassigned)
	})

	t.Run("suspect_owners", func(t *testing.T) {
		assert := assert.New(t)
		h := &history{t: t}
		h.units("u1").
			member(memberJoin, "a", "i1").member(memberActivate, "a", "i1").
			member(memberJoin, "b", "i1").member(memberActivate, "b", "i1").
			epoch(1).
			assign("u1", "a", "i1", 1).
			member(memberSuspect, "a", "i1")
		snapshot, err := h.fold()
		require.Nil(t, err)

		changes, _ := (&Engine{}).plan(snapshot)
		assert.Equal([]assignmentCommand{{UnitID: "u1", OwnerID: "b", OwnerIncarnation: "i1"}}, changes)

		changes, _ = (&Engine{keepSuspectUnits: true}).plan(snapshot)
		assert.Empty(changes)
	})

	t.Run("ties_go_to_lowest_member_id", func(t *testing.T) {
		assert := assert.New(t)
		h := &history{t: t}
		h.units("u1").
			member(memberJoin, "a-b", "i1").member(memberActivate, "a-b", "i1").
			member(memberJoin, "a", "i2").member(memberActivate, "a", "i2")
		snapshot, err := h.fold()
		require.Nil(t, err)

		assert.Equal([]string{"a/i2", "a-b/i1"}, snapshot.ActiveMembers())
		changes, unassigned := (&Engine{}).plan(snapshot)
		assert.Zero(unassigned)
		assert.Equal([]assignmentCommand{{UnitID: "u1", OwnerID: "a", OwnerIncarnation: "i2"}}, changes)
	})

	t.Run("no_active_member", func(t *testing.T) {
		assert := assert.New(t)
		h := &history{t: t}
		h.units("u1", "u2", "u3").
			member(memberJoin, "a", "i1").member(memberActivate, "a", "i1").
			epoch(1).
			assign("u1", "a", "i1", 1).
			assign("u2", "", "", 1).
			member(memberDepart, "a", "i1")
		snapshot, err := h.fold()
		require.Nil(t, err)

		changes, unassigned := (&Engine{}).plan(snapshot)
		assert.Equal(3, unassigned)
		assert.Equal([]assignmentCommand{{UnitID: "u1"}, {UnitID: "u3"}}, changes)
	})
}

func TestMembershipDelta(t *testing.T) {
	assert := assert.New(t)
	delta := MembershipDelta{}
	assert.True(delta.IsEmpty())

	delta.Departed = append(delta.Departed, "a/i1")
	assert.False(delta.IsEmpty())
	assert.Equal("membership changed joined=0 suspected=0 departed=1", delta.reason())
}
