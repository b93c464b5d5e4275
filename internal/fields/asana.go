package fields

import "github.com/mesh-intelligence/asana2sql/pkg/types"

// Default returns the standard Asana task field set in column order, with
// the id field first. When memberships is non-nil a ProjectMemberships
// field is appended.
func Default(memberships MembershipWriter) []types.Field {
	fs := []types.Field{
		ID{},
		String{Attribute: "name"},
		String{Attribute: "notes"},
		Bool{Attribute: "completed"},
		Timestamp{Attribute: "completed_at"},
		Timestamp{Attribute: "created_at"},
		Timestamp{Attribute: "modified_at"},
		Timestamp{Attribute: "due_on"},
		Reference{Attribute: "assignee", Key: "name", ColumnName: "assignee"},
		Reference{Attribute: "parent", Key: "id", ColumnName: "parent_id"},
	}
	if memberships != nil {
		fs = append(fs, &ProjectMemberships{Writer: memberships})
	}
	return fs
}
