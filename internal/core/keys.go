package core

// Persisted slot names besides the per-dataset snapshot maps.
const (
	KeyConfig             = "config"
	KeyInstallments       = "installments"
	KeyProjectionSettings = "projectionSettings"
	KeyLastBackupDate     = "lastBackupDate"
	KeySelectedTab        = "selectedTab"
)
