package model

import "fmt"

// AutomationMode gates the planning scheduler.
type AutomationMode string

const (
	ModeOff             AutomationMode = "OFF"
	ModeEmergenciesOnly AutomationMode = "EMERGENCIES_ONLY"
	ModeFull            AutomationMode = "FULL"
)

// ParseAutomationMode validates an operator-supplied mode string.
func ParseAutomationMode(s string) (AutomationMode, error) {
	switch AutomationMode(s) {
	case ModeOff, ModeEmergenciesOnly, ModeFull:
		return AutomationMode(s), nil
	}
	return "", fmt.Errorf("unknown automation mode %q", s)
}

// AutomationConfig is the persisted singleton controlling automation.
// Any mode may follow any other mode: operator override is always valid.
type AutomationConfig struct {
	ID                       string         `json:"id"`
	Mode                     AutomationMode `json:"mode"`
	EmergencyScanIntervalMin int            `json:"emergency_scan_interval_min"`
}
