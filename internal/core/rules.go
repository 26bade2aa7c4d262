package core

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return new(RulesEngine)
}

// NewDefaultRulesEngine builds a rules engine with the built-in advisory set.
// None of the built-in rules block a commit.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewDanglingReferenceRule())
	engine.Register(NewMixPartitionRule())
	engine.Register(NewZeroConcentrationRule())
	return engine
}
