package coordinator

// State is a step of the role assignment flow.
type State string

const (
	StateUninitialized         State = "UNINITIALIZED"
	StateDetecting             State = "DETECTING"
	StateSingleScreen          State = "SINGLE_SCREEN"
	StateMultiScreenUnassigned State = "MULTI_SCREEN_UNASSIGNED"
	StateAwaitingAssignment    State = "AWAITING_ASSIGNMENT"
	StateReady                 State = "READY"
)

// assignmentMessage accompanies every role assignment request.
const assignmentMessage = "Please assign screen roles to use detailed views"
