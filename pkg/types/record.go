package types

import "fmt"

// IDAttribute is the remote attribute that carries a record's identity.
const IDAttribute = "id"

// Record is a remote task keyed by attribute name. Values are whatever the
// remote API decoded: strings, bools, float64, nested maps and slices.
type Record map[string]any

// ID returns the record's identity rendered as a string, or "" when absent.
func (r Record) ID() string {
	v, ok := r[IDAttribute]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Project is the remote project a table mirrors.
type Project struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}
