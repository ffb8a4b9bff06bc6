package responsibility

import (
	"context"
	"log/slog"

	"github.com/c360studio/contractnotify/directory"
	"github.com/c360studio/contractnotify/vocabulary/contract"
)

// DefaultControllerRole is the fallback identity used when no specific
// responsible can be determined.
const DefaultControllerRole = "d:contract_controller_role"

// Directory is the part of the directory gateway the resolver needs.
type Directory interface {
	LoadDocument(ctx context.Context, id string) (*directory.Document, error)
	IsIndividualValid(ctx context.Context, doc *directory.Document) (bool, error)
	IsSubUnitOf(ctx context.Context, department *directory.Document, rootID string) (bool, error)
	GetDepartmentChief(ctx context.Context, department *directory.Document) (string, bool, error)
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// ControllerRole is the identity of the fallback controller.
	ControllerRole string

	// OrgRoot is the organizational unit every responsible department must belong to.
	OrgRoot string

	Logger *slog.Logger
}

// Resolver determines the single responsible for one contract. It keeps no
// state between calls, so one Resolver may serve many goroutines.
type Resolver struct {
	dir        Directory
	controller string
	orgRoot    string
	logger     *slog.Logger
}

// NewResolver creates a resolver over the given directory.
func NewResolver(dir Directory, cfg ResolverConfig) *Resolver {
	if cfg.ControllerRole == "" {
		cfg.ControllerRole = DefaultControllerRole
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Resolver{
		dir:        dir,
		controller: cfg.ControllerRole,
		orgRoot:    cfg.OrgRoot,
		logger:     cfg.Logger,
	}
}

// ControllerRole returns the fallback identity.
func (r *Resolver) ControllerRole() string {
	return r.controller
}

// Resolve returns the responsible for the contract. It fails only when the
// contract itself cannot be loaded.
func (r *Resolver) Resolve(ctx context.Context, contractID string) (Responsible, error) {
	doc, err := r.dir.LoadDocument(ctx, contractID)
	if err != nil {
		r.logger.Error("Failed to load contract", "contract", contractID, "error", err)
		return Responsible{}, &ResolutionError{ContractID: contractID, Err: err}
	}

	// All four checks run before branching; only some of them matter per branch.
	executorValid := r.isRoleValid(ctx, doc, contract.Executor)
	supporterValid := r.isRoleValid(ctx, doc, contract.Supporter)
	managerValid := r.isRoleValid(ctx, doc, contract.Manager)
	departmentValid := r.isRoleValid(ctx, doc, contract.ResponsibleDepartment)

	r.logger.Debug("Contract roles checked",
		"contract", contractID,
		"executor", executorValid,
		"supporter", supporterValid,
		"manager", managerValid,
		"department", departmentValid)

	if !executorValid {
		return r.escalate(ctx, contractID, doc), nil
	}

	if !supporterValid || !managerValid || !departmentValid {
		executorID, _ := doc.First(contract.Executor)
		return NewResponsible(executorID, ReasonExecutor, contractID), nil
	}

	// Fully staffed contracts are still reviewed centrally.
	return r.controllerFor(contractID, ReasonController), nil
}

// isRoleValid reports whether the role is assigned to an entity that loads and
// is currently valid. Failures count as not valid.
func (r *Resolver) isRoleValid(ctx context.Context, doc *directory.Document, predicate string) bool {
	id, ok := doc.First(predicate)
	if !ok {
		return false
	}

	entity, err := r.dir.LoadDocument(ctx, id)
	if err != nil {
		r.logger.Warn("Failed to load contract role",
			"contract", doc.ID,
			"role", predicate,
			"entity", id,
			"error", err)
		return false
	}

	valid, err := r.dir.IsIndividualValid(ctx, entity)
	if err != nil {
		r.logger.Warn("Failed to check contract role validity",
			"contract", doc.ID,
			"role", predicate,
			"entity", id,
			"error", err)
		return false
	}
	return valid
}

// escalate moves responsibility from an invalid executor to the department
// chief, or to the controller when the chief cannot take it.
func (r *Resolver) escalate(ctx context.Context, contractID string, doc *directory.Document) Responsible {
	deptID, ok := doc.First(contract.ResponsibleDepartment)
	if !ok {
		return r.controllerFor(contractID, ReasonController)
	}

	dept, err := r.dir.LoadDocument(ctx, deptID)
	if err != nil {
		r.logger.Warn("Failed to load responsible department",
			"contract", contractID, "department", deptID, "error", err)
		return r.controllerFor(contractID, ReasonController)
	}

	inOrg, err := r.dir.IsSubUnitOf(ctx, dept, r.orgRoot)
	if err != nil {
		r.logger.Warn("Failed to check department membership",
			"contract", contractID, "department", deptID, "root", r.orgRoot, "error", err)
		return r.controllerFor(contractID, ReasonController)
	}
	if !inOrg {
		return r.controllerFor(contractID, ReasonControllerNotUZ)
	}

	deptValid, err := r.dir.IsIndividualValid(ctx, dept)
	if err != nil || !deptValid {
		if err != nil {
			r.logger.Warn("Failed to check department validity",
				"contract", contractID, "department", deptID, "error", err)
		}
		return r.controllerFor(contractID, ReasonController)
	}

	chiefID, found, err := r.dir.GetDepartmentChief(ctx, dept)
	if err != nil || !found {
		if err != nil {
			r.logger.Warn("Failed to get department chief",
				"contract", contractID, "department", deptID, "error", err)
		}
		return r.controllerFor(contractID, ReasonController)
	}

	chief, err := r.dir.LoadDocument(ctx, chiefID)
	if err != nil {
		r.logger.Warn("Failed to load department chief",
			"contract", contractID, "chief", chiefID, "error", err)
		return r.controllerFor(contractID, ReasonController)
	}

	chiefValid, err := r.dir.IsIndividualValid(ctx, chief)
	if err != nil || !chiefValid {
		return r.controllerFor(contractID, ReasonController)
	}

	return NewResponsible(chiefID, ReasonDepartment, contractID)
}

func (r *Resolver) controllerFor(contractID string, reason Reason) Responsible {
	return NewResponsible(r.controller, reason, contractID)
}
