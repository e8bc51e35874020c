package domain

// Scope is one authorization grant carried by a caller's token. Token
// issuance and verification happen upstream; the engine only intersects
// the caller's scope set with each action's required scopes.
type Scope string

const (
	ScopeRecordDeclare  Scope = "record.declare"
	ScopeRecordValidate Scope = "record.validate"
	ScopeRecordRegister Scope = "record.register"
	ScopeRecordCertify  Scope = "record.certify"
	ScopeRecordCorrect  Scope = "record.correct"
	ScopeRecordReject   Scope = "record.reject"
	ScopeRecordArchive  Scope = "record.archive"
	ScopeRecordAssign   Scope = "record.assign"
)

// UnassignOthersScope returns the elevated scope needed to unassign a
// record that is assigned to another user. The grant is issued per event
// type, e.g. "record.unassign-others:birth".
func UnassignOthersScope(event EventType) Scope {
	return Scope("record.unassign-others:" + string(event))
}

// ScopeSet is the caller's granted scopes with set-membership helpers.
type ScopeSet map[Scope]struct{}

// NewScopeSet builds a ScopeSet from a token's scope list.
func NewScopeSet(scopes ...Scope) ScopeSet {
	set := make(ScopeSet, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return set
}

// ParseScopes converts raw token claim strings into a ScopeSet. Unknown
// scopes are kept verbatim; the route table decides what is required.
func ParseScopes(raw []string) ScopeSet {
	set := make(ScopeSet, len(raw))
	for _, s := range raw {
		if s != "" {
			set[Scope(s)] = struct{}{}
		}
	}
	return set
}

// Has reports whether the set contains the given scope.
func (s ScopeSet) Has(scope Scope) bool {
	_, ok := s[scope]
	return ok
}

// HasAny reports whether the set intersects the given scopes. An empty
// requirement list means the route is open to any authenticated caller.
func (s ScopeSet) HasAny(scopes ...Scope) bool {
	if len(scopes) == 0 {
		return true
	}
	for _, scope := range scopes {
		if s.Has(scope) {
			return true
		}
	}
	return false
}

// List returns the scopes as a slice, for serialization into claims.
func (s ScopeSet) List() []string {
	out := make([]string, 0, len(s))
	for scope := range s {
		out = append(out, string(scope))
	}
	return out
}
