package gates

import "fmt"

// KillSwitchError 紧急停用开关已激活
type KillSwitchError struct {
	System string
}

func (e *KillSwitchError) Error() string {
	return fmt.Sprintf("%s is temporarily disabled", e.System)
}

// FamilyDisabledError 功能族未对该用户启用
type FamilyDisabledError struct {
	Family string
}

func (e *FamilyDisabledError) Error() string {
	return fmt.Sprintf("%s functionality is not enabled for this user", e.Family)
}

// CapabilityDisabledError 具体能力未启用
type CapabilityDisabledError struct {
	Key string
}

func (e *CapabilityDisabledError) Error() string {
	return fmt.Sprintf("Specific feature '%s' is not enabled", e.Key)
}
