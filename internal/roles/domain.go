package roles

// Role bundles ACLs under a named grant. Role and ACL ids are the
// human-readable names themselves ("Super admin", "Manage groups").
type Role struct {
	ID   string   `json:"id"`
	ACLs []string `json:"acls"`
}

// ACL is a single named permission.
type ACL struct {
	ID string `json:"id"`
}
