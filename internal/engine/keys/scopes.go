package keys

// ScopeAll grants every scope.
const ScopeAll = "*"

// allowedScopes is the fixed allow-list of capabilities a key can be
// issued with.
var allowedScopes = map[string]bool{
	ScopeAll:           true,
	"read:spacecraft":  true,
	"write:spacecraft": true,
	"read:compliance":  true,
	"write:compliance": true,
	"read:documents":   true,
	"write:documents":  true,
	"read:reports":     true,
	"write:reports":    true,
	"read:webhooks":    true,
	"write:webhooks":   true,
}

func IsValidScope(scope string) bool {
	return allowedScopes[scope]
}

// HasScope reports whether the granted scope set satisfies a required
// scope. The wildcard satisfies everything.
func HasScope(granted []string, required string) bool {
	for _, s := range granted {
		if s == required || s == ScopeAll {
			return true
		}
	}
	return false
}
