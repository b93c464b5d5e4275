package types

// Join names the table joined onto a primary table and the column pair the
// rows are matched on: primary.Left = Table.Right.
type Join struct {
	Table string
	Left  string
	Right string
}

// Filter restricts a join to rows where Table.Column equals Value. Value is
// always bound as a statement parameter.
type Filter struct {
	Table  string
	Column string
	Value  any
}
