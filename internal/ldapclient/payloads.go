package ldapclient

// Payload shapes for the hook registry. These are exported (rather than
// local anonymous structs) specifically so that out-of-package chained/
// fan-out subscribers — internal/orgconsistency, internal/trash,
// internal/authz — can type-assert the payload they receive.

// SearchRequestPayload is what ldapSearchRequest chains over.
type SearchRequestPayload struct {
	Base string
	Opts SearchOpts
}

// AddRequestPayload is what ldapAddRequest and ldapAddDone carry.
type AddRequestPayload struct {
	DN    string
	Entry Entry
}

// ModifyRequestPayload is what ldapModifyRequest and ldapModifyDone carry.
type ModifyRequestPayload struct {
	DN      string
	Changes ChangeSet
	OpNum   int64
}

// RenameRequestPayload is what ldapRenameRequest and ldapRenameDone carry.
type RenameRequestPayload struct {
	DN     string
	NewRDN string
}

// MoveDonePayload is what ldapMoveDone carries.
type MoveDonePayload struct {
	OldDN       string
	NewRDN      string
	NewParentDN string
}
