package rbac

type Role string
type Action string

const (
	RoleBuyer    Role = "buyer"
	RoleSeller   Role = "seller"
	RoleOutsider Role = "outsider"
)

const (
	ActionRead    Action = "read"
	ActionCounter Action = "counter"
)

// RoleFor derives an actor's role on an offer from the offer's buyer and the
// property's current seller. An empty actor is always an outsider.
func RoleFor(actorID, buyerID, sellerID string) Role {
	switch {
	case actorID == "":
		return RoleOutsider
	case actorID == buyerID:
		return RoleBuyer
	case actorID == sellerID:
		return RoleSeller
	default:
		return RoleOutsider
	}
}

func Can(role Role, action Action) bool {
	switch role {
	case RoleBuyer, RoleSeller:
		return action == ActionRead || action == ActionCounter
	default:
		return false
	}
}
