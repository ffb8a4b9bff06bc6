package responsibility

import (
	"github.com/c360studio/contractnotify/directory"
	"github.com/c360studio/contractnotify/vocabulary/contract"
)

const (
	testRoot       = "d:org_root"
	testController = "d:contract_controller_role"
)

// person returns a person document with the given validity.
func person(id string, valid bool) *directory.Document {
	return &directory.Document{ID: id, Triples: []directory.Triple{
		{Predicate: contract.Valid, Object: valid},
	}}
}

// department returns a department under parent with an optional chief.
func department(id, parent, chief string, valid bool) *directory.Document {
	doc := &directory.Document{ID: id, Triples: []directory.Triple{
		{Predicate: contract.Valid, Object: valid},
		{Predicate: contract.ParentUnit, Object: parent},
	}}
	if chief != "" {
		doc.Triples = append(doc.Triples, directory.Triple{Predicate: contract.HasChief, Object: chief})
	}
	return doc
}

// contractDoc builds a contract with the given role assignments; empty values are omitted.
func contractDoc(id, executor, supporter, manager, dept string) *directory.Document {
	doc := &directory.Document{ID: id}
	add := func(pred, value string) {
		if value != "" {
			doc.Triples = append(doc.Triples, directory.Triple{Predicate: pred, Object: value})
		}
	}
	add(contract.Executor, executor)
	add(contract.Supporter, supporter)
	add(contract.Manager, manager)
	add(contract.ResponsibleDepartment, dept)
	return doc
}

// baseDirectory is an org chart with valid and invalid people and departments.
func baseDirectory() *directory.Memory {
	m := directory.NewMemory()
	m.Put(&directory.Document{ID: testRoot})
	m.Put(department("d:dept", testRoot, "d:chief", true))
	m.Put(department("d:dept_no_chief", testRoot, "", true))
	m.Put(department("d:dept_bad_chief", testRoot, "d:chief_gone", true))
	m.Put(department("d:dept_inactive", testRoot, "d:chief", false))
	m.Put(department("d:dept_foreign", "d:other_root", "d:chief", true))
	m.Put(&directory.Document{ID: "d:other_root"})
	m.Put(person("d:executor", true))
	m.Put(person("d:executor_gone", false))
	m.Put(person("d:supporter", true))
	m.Put(person("d:supporter_gone", false))
	m.Put(person("d:manager", true))
	m.Put(person("d:chief", true))
	m.Put(person("d:chief_gone", false))
	return m
}
