package enums

// SyncAction is a one-way operation against the external HR system.
type SyncAction string

const (
	SyncActionPush   SyncAction = "push"
	SyncActionRemove SyncAction = "remove"
)

// String implements fmt.Stringer.
func (s SyncAction) String() string {
	return string(s)
}
