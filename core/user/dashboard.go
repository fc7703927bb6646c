package user

// DashboardView names the dashboard layout served to a role.
type DashboardView string

const (
	StudentDashboard    DashboardView = "student"
	InstructorDashboard DashboardView = "instructor"
	AdminDashboard      DashboardView = "admin"
)

// DashboardFor selects the dashboard view for role.
// Unknown roles get the student view, which exposes nothing beyond the caller's own enrollments.
func DashboardFor(role Role) DashboardView {
	switch role {
	case RoleAdmin:
		return AdminDashboard
	case RoleInstructor:
		return InstructorDashboard
	default:
		return StudentDashboard
	}
}
