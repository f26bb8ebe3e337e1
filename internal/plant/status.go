package plant

// Status is the single-label summary shown on the device and app.
type Status string

const (
	StatusSleeping    Status = "SLEEPING"
	StatusThirsty     Status = "THIRSTY"
	StatusOverwatered Status = "OVERWATERED"
	StatusSadNeedsSun Status = "SAD_NEEDS_SUN"
	StatusNeedsSunNow Status = "NEEDS_SUN_NOW"
	StatusHappy       Status = "HAPPY"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusSleeping, StatusThirsty, StatusOverwatered,
		StatusSadNeedsSun, StatusNeedsSunNow, StatusHappy:
		return true
	}
	return false
}
