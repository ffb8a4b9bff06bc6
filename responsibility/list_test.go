package responsibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestList_GroupsByIdentity(t *testing.T) {
	l := NewList()
	l.Add(NewResponsible("p:bob", ReasonExecutor, "c1"))
	l.Add(NewResponsible("ctrl", ReasonController, "c2"))
	l.Add(NewResponsible("p:bob", ReasonExecutor, "c3"))
	l.Add(NewResponsible("ctrl", ReasonControllerNotUZ, "c4"))
	l.Add(NewResponsible("ctrl", ReasonController, "c5"))

	assert.Equal(t, 5, l.Len())
	assert.Equal(t, []string{"p:bob", "ctrl"}, l.Identities())

	groups := l.Groups()
	assert.Len(t, groups, 2)
	assert.Equal(t, "p:bob", groups[0].Recipient)
	assert.Equal(t, []string{"c1", "c3"}, groups[0].ContractIDs())
	assert.Equal(t, []string{"c2", "c4", "c5"}, groups[1].ContractIDs())

	assert.Equal(t, []Batch{
		{Recipient: "ctrl", Reason: ReasonController, ContractIDs: []string{"c2", "c5"}},
		{Recipient: "ctrl", Reason: ReasonControllerNotUZ, ContractIDs: []string{"c4"}},
	}, groups[1].ByReason())
}

func TestList_Lookup(t *testing.T) {
	l := NewList()
	l.Add(NewResponsible("p:bob", ReasonExecutor, "c1"))

	got, ok := l.Lookup("c1")
	assert.True(t, ok)
	assert.Equal(t, NewResponsible("p:bob", ReasonExecutor, "c1"), got)

	_, ok = l.Lookup("c2")
	assert.False(t, ok)
}

func TestList_ReturnsCopies(t *testing.T) {
	l := NewList()
	l.Add(NewResponsible("p:bob", ReasonExecutor, "c1"))

	rs := l.Responsibilities("p:bob")
	rs[0].ContractID = "mutated"
	ids := l.Identities()
	ids[0] = "mutated"

	assert.Equal(t, "c1", l.Responsibilities("p:bob")[0].ContractID)
	assert.Equal(t, []string{"p:bob"}, l.Identities())
}
