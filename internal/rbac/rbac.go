package rbac

type Role string
type Action string

const (
	RoleAuthor       Role = "author"
	RoleReviewer     Role = "reviewer"
	RoleDeputyEditor Role = "deputy_editor"
	RoleAdmin        Role = "admin"
)

const (
	ActionRead     Action = "read"
	ActionSubmit   Action = "submit"
	ActionComment  Action = "comment"
	ActionReview   Action = "review"
	ActionDecide   Action = "decide"
	ActionAnnounce Action = "announce"
	ActionAdmin    Action = "admin"
)

// Grants is a user's role plus the per-user capability flags.
type Grants struct {
	Role    Role
	Submit  bool
	Review  bool
	Comment bool
}

func Can(g Grants, action Action) bool {
	switch action {
	case ActionRead:
		return true
	case ActionSubmit:
		return g.Submit
	case ActionComment:
		return g.Comment || isEditor(g.Role)
	case ActionReview:
		return g.Review || isEditor(g.Role)
	case ActionDecide, ActionAnnounce:
		return isEditor(g.Role)
	case ActionAdmin:
		return g.Role == RoleAdmin
	default:
		return false
	}
}

func isEditor(r Role) bool {
	return r == RoleDeputyEditor || r == RoleAdmin
}

func (r Role) Valid() bool {
	switch r {
	case RoleAuthor, RoleReviewer, RoleDeputyEditor, RoleAdmin:
		return true
	default:
		return false
	}
}

func Normalize(role string) Role {
	if r := Role(role); r.Valid() {
		return r
	}
	return RoleAuthor
}
