package port

// ProgressReporter is purely observational; no logic depends on its state.
type ProgressReporter interface {
	AddOverall(description string, total int)
	AddItem(index int, description string) ItemProgress
	Log(event string, message string)
}

// ItemProgress tracks a single album item.
type ItemProgress interface {
	Update(completedPercent float64)
	Hide()
	Done()
}
