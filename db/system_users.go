package db

// System user UUIDs for automated actions.
// These rows are seeded by migrations/schema.sql.
const (
	// SystemUserWorkflow represents membership workflow automation
	// (auto-approvals on open-access teams, cascade cleanups)
	SystemUserWorkflow = "00000000-0000-0000-0000-000000000001"

	// SystemUserNotifier represents the invite notification worker
	SystemUserNotifier = "00000000-0000-0000-0000-000000000002"

	// SystemUserAPI represents API system actions
	SystemUserAPI = "00000000-0000-0000-0000-000000000003"
)
