package core

import "flowpanel/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Reagent            = domain.Reagent
	Tube               = domain.Tube
	Catalog            = domain.Catalog
	TubeSet            = domain.TubeSet
	Volumes            = domain.Volumes
	Project            = domain.Project
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityReagent = domain.EntityReagent
	EntityTube    = domain.EntityTube
	EntityProject = domain.EntityProject
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate  = domain.ActionCreate
	ActionUpdate  = domain.ActionUpdate
	ActionDelete  = domain.ActionDelete
	ActionReplace = domain.ActionReplace
)
