package notifications

const (
	RecipientEmployee = "employee"
	RecipientAdmin    = "admin"
)

const (
	TypeExpiryWarning = "expiry_warning"
	TypeExpired       = "expired"
)

// JobTrainingNotifications is the job_runs type for a dispatch run.
const JobTrainingNotifications = "training_notifications"

const dateLayout = "02/01/2006"
