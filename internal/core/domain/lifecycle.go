package domain

// Action is something an actor can do to an invoice
type Action string

const (
	ActionSubmit    Action = "SUBMIT"
	ActionApproveV1 Action = "APPROVE_V1"
	ActionRejectV1  Action = "REJECT_V1"
	ActionApproveV2 Action = "APPROVE_V2"
	ActionRejectV2  Action = "REJECT_V2"
	ActionPay       Action = "PAY"
	ActionCancel    Action = "CANCEL"

	// not transitions, but gated the same way
	ActionEdit   Action = "EDIT"
	ActionDelete Action = "DELETE"
)

// Assignee names which invoice reference must match the actor.
type Assignee int

const (
	AssigneeCreator Assignee = iota
	AssigneeValidator1
	AssigneeValidator2
	AssigneeTreasurer
)

// Rule is one row of the transition table.
type Rule struct {
	Action   Action
	From     Status
	To       Status
	Role     Role
	Assignee Assignee
	// Level is recorded on the audit trail.
	Level string
}

// Approves reports whether firing the rule moves the invoice forward.
func (r Rule) Approves() bool {
	return r.To != StatusRejected && r.To != StatusCancelled
}

var transitions = map[Action]Rule{
	ActionSubmit:    {ActionSubmit, StatusDraft, StatusPendingV1, RoleU1, AssigneeCreator, "U1"},
	ActionApproveV1: {ActionApproveV1, StatusPendingV1, StatusPendingV2, RoleV1, AssigneeValidator1, "V1"},
	ActionRejectV1:  {ActionRejectV1, StatusPendingV1, StatusRejected, RoleV1, AssigneeValidator1, "V1"},
	ActionApproveV2: {ActionApproveV2, StatusPendingV2, StatusPendingTreasury, RoleV2, AssigneeValidator2, "V2"},
	ActionRejectV2:  {ActionRejectV2, StatusPendingV2, StatusRejected, RoleV2, AssigneeValidator2, "V2"},
	ActionPay:       {ActionPay, StatusPendingTreasury, StatusPaid, RoleT1, AssigneeTreasurer, "T1"},
	ActionCancel:    {ActionCancel, StatusDraft, StatusCancelled, RoleU1, AssigneeCreator, "U1"},
}

// transitionOrder fixes the order PermittedActions reports actions in.
var transitionOrder = []Action{
	ActionSubmit, ActionCancel,
	ActionApproveV1, ActionRejectV1,
	ActionApproveV2, ActionRejectV2,
	ActionPay,
}

// Transition looks up the rule for a state-changing action.
func Transition(a Action) (Rule, bool) {
	r, ok := transitions[a]
	return r, ok
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s Status) bool {
	return s == StatusPaid || s == StatusRejected || s == StatusCancelled
}

// IsPending reports whether s waits on a validator or the treasury.
func IsPending(s Status) bool {
	for _, p := range PendingStatuses {
		if s == p {
			return true
		}
	}
	return false
}

// CanEdit reports whether the creator may still change the invoice fields.
// Editing a rejected invoice sends it back to draft.
func CanEdit(s Status) bool {
	return s == StatusDraft || s == StatusRejected
}

// CanDelete reports whether the invoice may be removed.
func CanDelete(s Status) bool {
	return s == StatusDraft
}

// CheckTransition is the single authoritative guard. Checks run in order:
// known action, current state, role, assignment.
func CheckTransition(inv Subject, actor Actor, a Action) error {
	switch a {
	case ActionEdit:
		return checkOwnerAction(inv, actor, a, CanEdit(inv.Status))
	case ActionDelete:
		return checkOwnerAction(inv, actor, a, CanDelete(inv.Status))
	}

	rule, ok := transitions[a]
	if !ok {
		return refuse(a, ErrUnknownAction, "unknown action %q", a)
	}
	if inv.Status != rule.From {
		return refuse(a, ErrWrongState, "invoice is %s, expected %s", inv.Status, rule.From)
	}
	if actor.Role != rule.Role {
		return refuse(a, ErrWrongRole, "requires role %s, got %s", rule.Role, actor.Role)
	}
	if !isAssigned(inv, actor, rule.Assignee) {
		return refuse(a, ErrNotAssigned, "user %d is not the assigned %s", actor.ID, assigneeName(rule.Assignee))
	}
	return nil
}

func checkOwnerAction(inv Subject, actor Actor, a Action, stateOK bool) error {
	if !stateOK {
		return refuse(a, ErrWrongState, "invoice is %s", inv.Status)
	}
	if actor.Role != RoleU1 {
		return refuse(a, ErrWrongRole, "requires role %s, got %s", RoleU1, actor.Role)
	}
	if inv.CreatorID != actor.ID {
		return refuse(a, ErrNotAssigned, "user %d is not the creator", actor.ID)
	}
	return nil
}

func isAssigned(inv Subject, actor Actor, who Assignee) bool {
	switch who {
	case AssigneeCreator:
		return inv.CreatorID == actor.ID
	case AssigneeValidator1:
		return inv.Validator1ID != nil && *inv.Validator1ID == actor.ID
	case AssigneeValidator2:
		return inv.Validator2ID != nil && *inv.Validator2ID == actor.ID
	case AssigneeTreasurer:
		// unassigned treasury work is open to any treasurer
		return inv.TreasurerID == nil || *inv.TreasurerID == actor.ID
	}
	return false
}

func assigneeName(who Assignee) string {
	switch who {
	case AssigneeCreator:
		return "creator"
	case AssigneeValidator1:
		return "level-1 validator"
	case AssigneeValidator2:
		return "level-2 validator"
	case AssigneeTreasurer:
		return "treasurer"
	}
	return "actor"
}

// PermittedActions lists every action actor may take on inv right now.
// Views show exactly these actions and nothing else.
func PermittedActions(inv Subject, actor Actor) []Action {
	actions := make([]Action, 0, 4)
	for _, a := range transitionOrder {
		if CheckTransition(inv, actor, a) == nil {
			actions = append(actions, a)
		}
	}
	if CheckTransition(inv, actor, ActionEdit) == nil {
		actions = append(actions, ActionEdit)
	}
	if CheckTransition(inv, actor, ActionDelete) == nil {
		actions = append(actions, ActionDelete)
	}
	return actions
}

// CanView reports whether actor may read inv. Admins read everything;
// everyone else reads what they created or are assigned to.
func CanView(inv Subject, actor Actor) bool {
	if actor.Role == RoleAdmin {
		return true
	}
	if inv.CreatorID == actor.ID {
		return true
	}
	if inv.Validator1ID != nil && *inv.Validator1ID == actor.ID {
		return true
	}
	if inv.Validator2ID != nil && *inv.Validator2ID == actor.ID {
		return true
	}
	if inv.TreasurerID != nil && *inv.TreasurerID == actor.ID {
		return true
	}
	return actor.Role == RoleT1 && inv.Status == StatusPendingTreasury && inv.TreasurerID == nil
}
