package caseload

const (
	CollectionClients   = "clients"
	CollectionTasks     = "tasks"
	CollectionCaseNotes = "case_notes"
	CollectionWorkshops = "workshops"
)

// Reference names a field in a dependent collection whose value is a user key.
type Reference struct {
	Collection string
	Field      string
}

func (r Reference) String() string {
	return r.Collection + "." + r.Field
}

var (
	RefClientAdmin          = Reference{Collection: CollectionClients, Field: "audit_admin_id"}
	RefClientCreatedBy      = Reference{Collection: CollectionClients, Field: "audit_created_by"}
	RefClientLastModifiedBy = Reference{Collection: CollectionClients, Field: "audit_last_modified_by"}
	RefTaskAssignee         = Reference{Collection: CollectionTasks, Field: "assignee"}
	RefCaseNoteAuthor       = Reference{Collection: CollectionCaseNotes, Field: "author"}
	RefWorkshopOwner        = Reference{Collection: CollectionWorkshops, Field: "owner"}
)

// References is the complete set of dependent fields rewritten when a legacy
// identity is folded into its canonical record.
var References = []Reference{
	RefClientAdmin,
	RefClientCreatedBy,
	RefClientLastModifiedBy,
	RefTaskAssignee,
	RefCaseNoteAuthor,
	RefWorkshopOwner,
}

// ReferenceFields lists the reference fields held by each dependent collection.
func ReferenceFields() map[string][]string {
	out := map[string][]string{}
	for _, ref := range References {
		out[ref.Collection] = append(out[ref.Collection], ref.Field)
	}
	return out
}

// Record is a dependent record reduced to the string fields this module touches.
type Record struct {
	Collection string
	ID         string
	Fields     map[string]string
}
