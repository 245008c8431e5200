package sessiongate

// Routes maps role areas to their client-side routes. The zero value is not
// useful; start from DefaultRoutes and override fields as needed.
type Routes struct {
	Login           string
	ClientDashboard string
	BarberDashboard string
	AdminDashboard  string
}

// DefaultRoutes returns the route table used by the booking front end.
func DefaultRoutes() Routes {
	return Routes{
		Login:           "/login",
		ClientDashboard: "/client/dashboard",
		BarberDashboard: "/barber/dashboard",
		AdminDashboard:  "/admin/dashboard",
	}
}

// DashboardFor resolves the dashboard route for a role. Unrecognized roles
// map to the login route: a session whose role we cannot place gets no
// dashboard (fail closed), and login is always safe to land on.
func (r Routes) DashboardFor(role UserRole) string {
	switch role {
	case RoleClient:
		return r.ClientDashboard
	case RoleBarber:
		return r.BarberDashboard
	case RoleAdmin:
		return r.AdminDashboard
	default:
		return r.Login
	}
}

func (r Routes) withDefaults() Routes {
	def := DefaultRoutes()
	if r.Login == "" {
		r.Login = def.Login
	}
	if r.ClientDashboard == "" {
		r.ClientDashboard = def.ClientDashboard
	}
	if r.BarberDashboard == "" {
		r.BarberDashboard = def.BarberDashboard
	}
	if r.AdminDashboard == "" {
		r.AdminDashboard = def.AdminDashboard
	}
	return r
}
